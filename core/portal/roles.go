package portal

// Role is the portal role of the logged in account.
type Role string

// Roles
const (
	RoleUser         Role = "USER"
	RoleAdmin        Role = "ADMIN"
	RoleSuperAdmin   Role = "SUPER_ADMIN"
	RoleCompanyAdmin Role = "COMPANY_ADMIN"
	RoleDeptAdmin    Role = "DEPT_ADMIN"
)

var (
	AdminRoles = []Role{RoleAdmin, RoleSuperAdmin, RoleCompanyAdmin, RoleDeptAdmin}
	AllRoles   = append([]Role{RoleUser}, AdminRoles...)

	// claimRoles maps backend authorities to portal roles.
	// The order matters: a later match wins when an account holds several authorities.
	claimRoles = []struct {
		claim string
		role  Role
	}{
		{"ROLE_ADMIN", RoleAdmin},
		{"ROLE_SUPER_ADMIN", RoleSuperAdmin},
		{"ROLE_COMPANY_ADMIN", RoleCompanyAdmin},
		{"ROLE_DEPT_ADMIN", RoleDeptAdmin},
	}

	RoleNames = map[Role]string{
		RoleUser:         "Student",
		RoleAdmin:        "Admin",
		RoleSuperAdmin:   "Super Admin",
		RoleCompanyAdmin: "Company Admin",
		RoleDeptAdmin:    "Department Admin",
	}
)

func (r Role) IsAdmin() bool {
	for _, ar := range AdminRoles {
		if r == ar {
			return true
		}
	}
	return false
}

func (r Role) Name() string {
	return RoleNames[r]
}

// RoleFromClaims resolves the portal role from the authorities returned at login.
func RoleFromClaims(claims []string) Role {
	has := make(map[string]bool, len(claims))
	for _, c := range claims {
		has[c] = true
	}
	role := RoleUser
	for _, cr := range claimRoles {
		if has[cr.claim] {
			role = cr.role
		}
	}
	return role
}

// Tab is one panel of the admin dashboard.
type Tab struct {
	ID    string
	Label string
	Roles []Role
}

func (t Tab) Allows(role Role) bool {
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Tab ids
const (
	TabJobs         = "jobs"
	TabApplications = "applications"
	TabInterviews   = "interviews"
	TabUsers        = "users"
	TabDepartments  = "departments"
	TabPapers       = "papers"
	TabGallery      = "gallery"
	TabCompanies    = "companies"
)

// Tabs is the admin menu, in display order.
var Tabs = []Tab{
	{ID: TabJobs, Label: "Jobs", Roles: []Role{RoleAdmin, RoleSuperAdmin, RoleCompanyAdmin, RoleDeptAdmin}},
	{ID: TabApplications, Label: "Applications", Roles: []Role{RoleAdmin, RoleSuperAdmin, RoleCompanyAdmin, RoleDeptAdmin}},
	{ID: TabInterviews, Label: "Interview Drives", Roles: []Role{RoleAdmin, RoleSuperAdmin, RoleCompanyAdmin}},
	{ID: TabUsers, Label: "Users", Roles: []Role{RoleAdmin, RoleSuperAdmin, RoleDeptAdmin}},
	{ID: TabDepartments, Label: "Departments", Roles: []Role{RoleAdmin, RoleSuperAdmin}},
	{ID: TabPapers, Label: "Papers", Roles: []Role{RoleAdmin, RoleSuperAdmin, RoleDeptAdmin}},
	{ID: TabGallery, Label: "Gallery", Roles: []Role{RoleAdmin, RoleSuperAdmin}},
	{ID: TabCompanies, Label: "Companies", Roles: []Role{RoleSuperAdmin}},
}

// VisibleTabs returns exactly the tabs the role may see.
func VisibleTabs(role Role) []Tab {
	var tabs []Tab
	for _, t := range Tabs {
		if t.Allows(role) {
			tabs = append(tabs, t)
		}
	}
	return tabs
}

// FindTab returns the tab with the given id.
func FindTab(id string) (Tab, bool) {
	for _, t := range Tabs {
		if t.ID == id {
			return t, true
		}
	}
	return Tab{}, false
}

package portal

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/placementcell/portal/core"
)

var (
	requiredForRoleTag  = "required_for_role"
	requiredForRoleText = "this field is required"

	notForRoleTag  = "not_for_role"
	notForRoleText = "not allowed for this role"
)

// InitValidators registers the portal validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(accountStructValidation, Account{})
	core.RegisterCustomTranslation(validate, translator, requiredForRoleTag, requiredForRoleText)
	core.RegisterCustomTranslation(validate, translator, notForRoleTag, notForRoleText)
}

// accountStructValidation enforces the role-conditional field groups:
// exactly the group of the account's role is populated, the others are empty.
// - COMPANY_ADMIN: companyName (+ allowed departments)
// - DEPT_ADMIN: adminBranch
// - USER: computerCode, batch, branch
func accountStructValidation(sl validator.StructLevel) {
	acc, ok := sl.Current().Interface().(Account)
	if !ok {
		return
	}

	type field struct {
		val        interface{}
		empty      bool
		name, sfld string
	}
	company := []field{
		{acc.CompanyName, acc.CompanyName == "", "companyName", "CompanyName"},
	}
	companyOpt := []field{
		{acc.AllowedDepartments, len(acc.AllowedDepartments) == 0, "allowedDepartments", "AllowedDepartments"},
	}
	dept := []field{
		{acc.AdminBranch, acc.AdminBranch == "", "adminBranch", "AdminBranch"},
	}
	student := []field{
		{acc.ComputerCode, acc.ComputerCode == "", "computerCode", "ComputerCode"},
		{acc.Batch, acc.Batch == "", "batch", "Batch"},
		{acc.Branch, acc.Branch == "", "branch", "Branch"},
	}

	require := func(flds []field) {
		for _, f := range flds {
			if f.empty {
				sl.ReportError(f.val, f.name, f.sfld, requiredForRoleTag, "")
			}
		}
	}
	forbid := func(groups ...[]field) {
		for _, flds := range groups {
			for _, f := range flds {
				if !f.empty {
					sl.ReportError(f.val, f.name, f.sfld, notForRoleTag, "")
				}
			}
		}
	}

	switch acc.Role {
	case RoleCompanyAdmin:
		require(company)
		forbid(dept, student)
	case RoleDeptAdmin:
		require(dept)
		forbid(company, companyOpt, student)
	case RoleUser:
		require(student)
		forbid(company, companyOpt, dept)
	case RoleAdmin, RoleSuperAdmin:
		forbid(company, companyOpt, dept, student)
	}
}

package portal

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementcell/portal/core"
)

func newValidator(t *testing.T) (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, ok := ut.New(_en, _en).GetTranslator("en")
	require.True(t, ok)
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate, translator
}

func TestAccountValidation(t *testing.T) {
	validate, translator := newValidator(t)

	base := func(role Role) Account {
		return Account{Username: "jdoe", Email: "jdoe@test.in", Role: role}
	}
	with := func(a Account, fn func(*Account)) Account {
		fn(&a)
		return a
	}

	tests := []struct {
		name    string
		acc     Account
		wantErr map[string]string
	}{
		{name: "admin", acc: base(RoleAdmin)},
		{
			name:    "admin with company fields",
			acc:     with(base(RoleSuperAdmin), func(a *Account) { a.CompanyName = "Acme" }),
			wantErr: map[string]string{"companyName": "not allowed for this role"},
		},
		{
			name: "company admin",
			acc:  with(base(RoleCompanyAdmin), func(a *Account) { a.CompanyName = "Acme"; a.AllowedDepartments = []string{"CSE"} }),
		},
		{
			name:    "company admin without company",
			acc:     base(RoleCompanyAdmin),
			wantErr: map[string]string{"companyName": "this field is required"},
		},
		{
			name:    "dept admin with student fields",
			acc:     with(base(RoleDeptAdmin), func(a *Account) { a.AdminBranch = "CSE"; a.Batch = "2025" }),
			wantErr: map[string]string{"batch": "not allowed for this role"},
		},
		{
			name: "student",
			acc:  with(base(RoleUser), func(a *Account) { a.ComputerCode = "CS21001"; a.Batch = "2021"; a.Branch = "CSE" }),
		},
		{
			name: "student missing enrollment",
			acc:  with(base(RoleUser), func(a *Account) { a.Branch = "CSE" }),
			wantErr: map[string]string{
				"computerCode": "this field is required",
				"batch":        "this field is required",
			},
		},
		{
			name:    "missing username",
			acc:     Account{Email: "x@test.in", Role: RoleAdmin},
			wantErr: map[string]string{"username": "this field is required"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.acc)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "want validator.ValidationErrors, got %T", err)
			assert.Equal(t, tt.wantErr, core.TranslateErrors(vErrs, translator))
		})
	}
}

func TestDepartmentValidation(t *testing.T) {
	validate, translator := newValidator(t)

	err := validate.Struct(Department{Code: "cse", Name: "Computer Science", MaxSemesters: 8})
	require.Error(t, err)
	assert.Equal(t,
		map[string]string{"code": "only uppercase letters and digits are allowed"},
		core.TranslateErrors(err.(validator.ValidationErrors), translator),
	)

	assert.NoError(t, validate.Struct(Department{Code: "CSE", Name: "Computer Science", MaxSemesters: 8}))
	assert.Error(t, validate.Struct(Department{Code: "CSE", Name: "Computer Science", MaxSemesters: 0}))
}

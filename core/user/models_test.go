package user

import "testing"

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleStudent, true},
		{RoleTeacher, true},
		{RoleMasterTeacher, true},
		{Role(""), false},
		{Role("admin"), false},
		{Role("Student"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUser_CanMutateCourses(t *testing.T) {
	tests := []struct {
		name string
		usr  User
		want bool
	}{
		{name: "student", usr: User{Role: RoleStudent, IsApproved: true}},
		{name: "unapproved teacher", usr: User{Role: RoleTeacher}},
		{name: "approved teacher", usr: User{Role: RoleTeacher, IsApproved: true}, want: true},
		{name: "admin", usr: User{Role: RoleMasterTeacher}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.usr.CanMutateCourses(); got != tt.want {
				t.Errorf("CanMutateCourses() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUser_Name(t *testing.T) {
	usr := User{FirstName: " Ann ", LastName: ""}
	if got := usr.Name(); got != "Ann" {
		t.Errorf("Name() = %q", got)
	}
	usr = User{FirstName: "Ann", LastName: "Bee"}
	if got := usr.Name(); got != "Ann Bee" {
		t.Errorf("Name() = %q", got)
	}
}

func TestUser_passwords(t *testing.T) {
	var usr User
	if err := usr.SetPassword("secret123"); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	if err := usr.CheckPassword("secret123"); err != nil {
		t.Errorf("CheckPassword() rejected the right password: %v", err)
	}
	if err := usr.CheckPassword("wrong"); err == nil {
		t.Error("CheckPassword() accepted a wrong password")
	}
}

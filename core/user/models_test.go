package user

import "testing"

func TestUser_CanManage(t *testing.T) {
	tests := []struct {
		name     string
		usr      User
		authorID string
		want     bool
	}{
		{name: "anonymous", usr: User{}, authorID: "", want: false},
		{name: "author", usr: User{ID: "u1", Roles: []string{RoleStudent}}, authorID: "u1", want: true},
		{name: "other student", usr: User{ID: "u2", Roles: []string{RoleStudent}}, authorID: "u1", want: false},
		{name: "teacher", usr: User{ID: "u3", Roles: []string{RoleTeacher}}, authorID: "u1", want: false},
		{name: "admin", usr: User{ID: "u4", Roles: []string{RoleAdmin}}, authorID: "u1", want: true},
		{name: "principal", usr: User{ID: "u5", Roles: []string{RoleAdminPrincipal}}, authorID: "u1", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.usr.CanManage(tt.authorID); got != tt.want {
				t.Errorf("CanManage() = %v, want %v", got, tt.want)
			}
		})
	}
}

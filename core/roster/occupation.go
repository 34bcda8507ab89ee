package roster

import (
	"strings"

	"github.com/avalia/avalia/core/user"
)

// occupationRoles maps lower-cased occupation hints to roles.
var occupationRoles = map[string]string{
	"dicente":   user.RoleStudent,
	"discente":  user.RoleStudent,
	"aluno":     user.RoleStudent,
	"estudante": user.RoleStudent,
	"student":   user.RoleStudent,
	"docente":   user.RoleProfessor,
	"professor": user.RoleProfessor,
}

// RoleForOccupation maps an occupation hint to a role.
// An empty hint yields defaultRole; an unknown one yields defaultRole and known == false.
func RoleForOccupation(occupation, defaultRole string) (role string, known bool) {
	occupation = strings.ToLower(strings.TrimSpace(occupation))
	if occupation == "" {
		return defaultRole, true
	}
	if role, ok := occupationRoles[occupation]; ok {
		return role, true
	}
	return defaultRole, false
}

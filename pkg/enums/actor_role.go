package enums

import "fmt"

// ActorRole is the role claim carried by an access token.
type ActorRole string

const (
	ActorRoleShopStaff ActorRole = "shop_staff"
	ActorRoleDCStaff   ActorRole = "dc_staff"
	ActorRoleDCManager ActorRole = "dc_manager"
	ActorRoleAdmin     ActorRole = "admin"
)

var validActorRoles = []ActorRole{
	ActorRoleShopStaff,
	ActorRoleDCStaff,
	ActorRoleDCManager,
	ActorRoleAdmin,
}

func (r ActorRole) String() string {
	return string(r)
}

func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ManagesInventory reports whether the role may change DC stock levels.
func (r ActorRole) ManagesInventory() bool {
	switch r {
	case ActorRoleDCStaff, ActorRoleDCManager, ActorRoleAdmin:
		return true
	}
	return false
}

func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}

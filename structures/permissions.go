package structures

// Permissions is a permission bitfield
type Permissions uint64

const (
	PermissionCreateInstantInvite Permissions = 1 << 0
	PermissionKickMembers         Permissions = 1 << 1
	PermissionBanMembers          Permissions = 1 << 2
	PermissionAdministrator       Permissions = 1 << 3
	PermissionManageChannels      Permissions = 1 << 4
	PermissionManageGuild         Permissions = 1 << 5
	PermissionViewChannel         Permissions = 1 << 10
	PermissionSendMessages        Permissions = 1 << 11
	PermissionManageMessages      Permissions = 1 << 13
	PermissionManageRoles         Permissions = 1 << 28

	PermissionAll = ^Permissions(0)
)

// Has reports whether every bit of p is set
func (ps Permissions) Has(p Permissions) bool {
	return ps&p == p
}

package auth

const (
	PermConfigRead       = "CONFIG_READ"
	PermConfigWrite      = "CONFIG_WRITE"
	PermRolesManage      = "ROLES_MANAGE"
	PermUsersInvite      = "USERS_INVITE"
	PermStaffRead        = "STAFF_READ"
	PermStaffInvite      = "STAFF_INVITE"
	PermStaffUpdate      = "STAFF_UPDATE"
	PermStaffDelete      = "STAFF_DELETE"
	PermStaffAssignRoles = "STAFF_ASSIGN_ROLES"
	PermVenuesCreate     = "KENO_VENUES_CREATE"
	PermVenuesRead       = "KENO_VENUES_READ"
	PermVenuesUpdate     = "KENO_VENUES_UPDATE"
	PermTicketsCreate    = "KENO_TICKETS_CREATE"
	PermTicketsVoid      = "KENO_TICKETS_VOID"
	PermTicketsPay       = "KENO_TICKETS_PAY"
	PermReportsView      = "KENO_REPORTS_VIEW"
)

// BuiltinPermissions is the seeded permission catalog. The key doubles as the document id.
var BuiltinPermissions = []Permission{
	{Key: PermConfigRead, Group: "CONFIG", Description: "Allows viewing and accessing system and application configuration settings."},
	{Key: PermConfigWrite, Group: "CONFIG", Description: "Allows creating, updating, and modifying system and application configuration settings."},
	{Key: PermRolesManage, Group: "ROLES", Description: "Allows creating, editing, and assigning roles, including managing role permissions."},
	{Key: PermUsersInvite, Group: "USERS", Description: "Allows inviting new users to the organization and managing pending invitations."},
	{Key: PermStaffRead, Group: "STAFF", Description: "Can view staff members and their roles."},
	{Key: PermStaffInvite, Group: "STAFF", Description: "Allows inviting new staff users and managing pending invitations."},
	{Key: PermStaffUpdate, Group: "STAFF", Description: "Can update staff roles and permissions."},
	{Key: PermStaffDelete, Group: "STAFF", Description: "Can remove staff members from the system."},
	{Key: PermStaffAssignRoles, Group: "STAFF", Description: "Can assign roles to staff members."},
	{Key: PermVenuesCreate, Group: "KENO", Description: "Can create and register new venues (taquillas)."},
	{Key: PermVenuesRead, Group: "KENO", Description: "Can view venues and their details."},
	{Key: PermVenuesUpdate, Group: "KENO", Description: "Can update venue information and assigned vendors."},
	{Key: PermTicketsCreate, Group: "KENO", Description: "Can issue new tickets (bets) at a venue."},
	{Key: PermTicketsVoid, Group: "KENO", Description: "Can void or cancel issued tickets."},
	{Key: PermTicketsPay, Group: "KENO", Description: "Can mark winning tickets as paid."},
	{Key: PermReportsView, Group: "KENO", Description: "Can view sales and payout reports."},
}

// BuiltinRole is a seeded role with its granted permission keys.
type BuiltinRole struct {
	Role
	Grants []string
}

func allPermissionKeys() []string {
	keys := make([]string, 0, len(BuiltinPermissions))
	for _, p := range BuiltinPermissions {
		keys = append(keys, p.Key)
	}
	return keys
}

// BuiltinRoles lists the seeded roles. Owner is the only system role.
var BuiltinRoles = []BuiltinRole{
	{
		Role:   Role{ID: "owner", Name: "Owner", Description: "Full system access. Built-in role, cannot be edited or deleted.", IsSystem: true},
		Grants: allPermissionKeys(),
	},
	{
		Role: Role{ID: "manager", Name: "Gerente", Description: "Can create and activate vendors, manage venues, and view reports."},
		Grants: []string{
			PermConfigRead,
			PermStaffRead, PermStaffInvite, PermStaffUpdate,
			PermVenuesCreate, PermVenuesRead, PermVenuesUpdate,
			PermTicketsCreate, PermTicketsVoid, PermTicketsPay,
			PermReportsView,
		},
	},
	{
		Role:   Role{ID: "vendor", Name: "Vendedor / Cajero", Description: "Can issue tickets and mark payouts at assigned venues."},
		Grants: []string{PermVenuesRead, PermTicketsCreate, PermTicketsPay},
	},
}

package config

import (
	"strings"

	"tallerpro.mx/shop/models"
)

// PermissionCatalog lists every permission string the API checks, plus the
// global wildcard granted to administrators.
func PermissionCatalog() []models.Permission {
	defs := []struct{ name, desc string }{
		{"*:*", "All permissions"},

		{models.PermClientList, "List and view clients"},
		{models.PermClientCreate, "Register clients"},
		{models.PermClientUpdate, "Edit clients"},
		{models.PermClientDelete, "Delete clients"},

		{models.PermVehicleList, "List and view vehicles"},
		{models.PermVehicleCreate, "Register vehicles"},
		{models.PermVehicleUpdate, "Edit vehicles"},
		{models.PermVehicleDelete, "Delete vehicles"},

		{models.PermEmployeeList, "List and view employees"},
		{models.PermEmployeeCreate, "Register employees"},
		{models.PermEmployeeUpdate, "Edit employees"},
		{models.PermEmployeeDelete, "Delete employees"},

		{models.PermCatalogList, "List catalog services"},
		{models.PermCatalogCreate, "Add catalog services"},
		{models.PermCatalogUpdate, "Edit catalog services"},
		{models.PermCatalogDelete, "Delete catalog services"},

		{models.PermActiveList, "List jobs in progress"},
		{models.PermActiveCreate, "Open jobs"},
		{models.PermActiveUpdate, "Advance jobs and upload attachments"},
		{models.PermActiveDelete, "Cancel jobs"},

		{models.PermCompletedList, "List completed jobs"},
		{models.PermCompletedExport, "Export completed jobs"},

		{models.PermInventoryList, "List inventory"},
		{models.PermInventoryCreate, "Add inventory items"},
		{models.PermInventoryUpdate, "Edit inventory and adjust stock"},
		{models.PermInventoryDelete, "Delete inventory items"},
		{models.PermInventoryExport, "Export inventory"},

		{models.PermQuoteList, "List quote requests"},
		{models.PermQuoteUpdate, "Follow up quote requests"},
		{models.PermQuoteDelete, "Delete quote requests"},

		{models.PermUserList, "List users"},
		{models.PermUserCreate, "Create users"},
		{models.PermUserUpdate, "Edit and unlock users"},
		{models.PermUserDelete, "Delete users"},

		{models.PermRoleList, "List roles and permissions"},
		{models.PermRoleCreate, "Create roles"},
		{models.PermRoleUpdate, "Edit roles"},
		{models.PermRoleDelete, "Delete roles"},
	}
	out := make([]models.Permission, 0, len(defs))
	for _, d := range defs {
		resource, action, _ := strings.Cut(d.name, ":")
		out = append(out, models.Permission{Name: d.name, Resource: resource, Action: action, Description: d.desc})
	}
	return out
}

// RoleTemplate describes a role created on first start.
type RoleTemplate struct {
	Name        string
	Description string
	Permissions []string
}

// DefaultRoles are seeded once; later edits through the API are kept.
var DefaultRoles = []RoleTemplate{
	{
		Name:        "admin",
		Description: "Full access",
		Permissions: []string{"*:*"},
	},
	{
		Name:        "recepcion",
		Description: "Front desk: clients, vehicles, job intake and quotes",
		Permissions: []string{
			"client:*", "vehicle:*",
			models.PermCatalogList,
			models.PermActiveList, models.PermActiveCreate, models.PermActiveUpdate,
			models.PermCompletedList,
			"quote:*",
		},
	},
	{
		Name:        "mecanico",
		Description: "Workshop: advance jobs and check stock",
		Permissions: []string{
			models.PermClientList, models.PermVehicleList, models.PermCatalogList,
			models.PermActiveList, models.PermActiveUpdate,
			models.PermInventoryList,
		},
	},
	{
		Name:        "almacen",
		Description: "Warehouse: inventory management",
		Permissions: []string{"inventory:*", models.PermCatalogList},
	},
}

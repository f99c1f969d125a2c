package constants

// DefaultProcesses is the seed catalog for the processes table, in id order.
var DefaultProcesses = []string{
	"Pre-Press",
	"Plates",
	"Card Cutting",
	"Printing",
	"Pasting",
	"Sorting",
	"Varnish",
	"Lamination Matte",
	"Lamination Shine",
	"Joint",
	"Die Cutting",
	"Foil",
	"Screen Printing",
	"Embose",
	"Double Tape",
	"Cutting",
}

// DepartmentProcesses maps a department role to the processes shown on its page.
var DepartmentProcesses = map[Role][]string{
	RolePrepress:    {"Pre-Press"},
	RolePlates:      {"Plates"},
	RoleCardCutting: {"Card Cutting"},
	RolePrinting:    {"Printing"},
	RolePasting:     {"Pasting"},
	RoleSorting:     {"Sorting"},
	RoleLamination:  {"Lamination Matte", "Lamination Shine"},
	RoleCutting:     {"Cutting", "Die Cutting"},
}

// DefaultLoginDomain turns an employee code into a login identifier.
const DefaultLoginDomain = "operativex.com"

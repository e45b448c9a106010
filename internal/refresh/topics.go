package refresh

// Refresh topics shared between producers (mutating dialogs) and consumers
// (dashboards and tables). Names are stable wire-level identifiers.
const (
	TopicHREmployees   = "hr.employees"
	TopicHRAttendance  = "hr.attendance"
	TopicHRLeaves      = "hr.leaves"
	TopicHRPayroll     = "hr.payroll"
	TopicHRRecruitment = "hr.recruitment"

	TopicInventory   = "inventory"
	TopicStoreOrders = "store.orders"

	TopicProductionOrders = "production.orders"
	TopicProductionStatus = "production.status"

	TopicPurchaseOrders   = "purchase.orders"
	TopicPurchaseRequests = "purchase.requests"

	TopicAssemblyOrders = "assembly.orders"
	TopicAssemblyStatus = "assembly.status"

	TopicShowroomProducts = "showroom.products"
	TopicShowroomOrders   = "showroom.orders"

	TopicFinanceInvoices = "finance.invoices"
	TopicFinancePayments = "finance.payments"

	TopicSalesOrders    = "sales.orders"
	TopicSalesCustomers = "sales.customers"

	TopicTransportDeliveries = "transport.deliveries"
	TopicTransportVehicles   = "transport.vehicles"

	TopicSecurityEntries = "security.entries"
	TopicSecurityPasses  = "security.passes"

	TopicAdminUsers     = "admin.users"
	TopicAdminApprovals = "admin.approvals"

	// TopicAll fans a refresh out to everything subscribed to it.
	TopicAll = "global.all"
)

package log

// Attribute keys shared by every component.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldMonth         = "month"
	FieldCategoryID    = "category_id"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldAmountCents   = "amount_cents"
	FieldBackend       = "backend"
	FieldMessageID     = "message_id"
)

// Values of FieldComponent.
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentBudget     = "budget"
	ComponentController = "controller"
	ComponentPoller     = "poller"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentREST       = "rest"
	ComponentExport     = "export"
	ComponentCache      = "cache"
	ComponentSecurity   = "security"
	ComponentRateLimit  = "rate_limit"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
	ComponentTemplate   = "template"
	ComponentCLI        = "cli"
)

// Values of FieldOperation.
const (
	OpRead      = "read"
	OpList      = "list"
	OpAssign    = "assign"
	OpUpdate    = "update"
	OpReconcile = "reconcile"
	OpLink      = "link_transfer"
	OpUnlink    = "unlink_transfer"
	OpTransfer  = "create_transfer"
	OpCreate    = "create"
	OpPoll      = "poll"
	OpRefetch   = "refetch"
	OpSync      = "sync"
	OpExport    = "export"
	OpValidate  = "validate"
	OpRender    = "render"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// Fields is an ordered list of key/value pairs for slog.
type Fields []any

func Attrs() Fields { return make(Fields, 0, 8) }

func (f Fields) Op(op string) Fields {
	return append(f, FieldOperation, op)
}

func (f Fields) Assignment(month string, categoryID, amountCents int64) Fields {
	return append(f, FieldMonth, month, FieldCategoryID, categoryID, FieldAmountCents, amountCents)
}

// Err is a no-op for a nil error.
func (f Fields) Err(err error) Fields {
	if err == nil {
		return f
	}
	return append(f, FieldError, err.Error())
}

func (f Fields) Args() []any { return f }

package toolset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sqlgate/sqlgate/database/types"
)

// Connection holds the target arguments shared by every database tool.
type Connection struct {
	DBType   string `json:"dbType" validate:"required,dbkind"`
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database" validate:"required"`
	UseSSL   bool   `json:"useSsl"`
}

// Target converts the arguments to a target with the family's default port
// applied when none was given.
func (c Connection) Target() (types.Target, error) {
	kind, err := types.ParseKind(c.DBType)
	if err != nil {
		return types.Target{}, err
	}
	t := types.Target{
		Kind:     kind,
		Host:     strings.TrimSpace(c.Host),
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Database: c.Database,
		TLS:      c.UseSSL,
	}.WithDefaults()
	return t, t.Validate()
}

type QueryArgs struct {
	Connection
	SQL     string `json:"sql" validate:"required"`
	Params  []any  `json:"params"`
	Limit   int    `json:"limit" validate:"gte=0"`
	Timeout int    `json:"timeout" validate:"gte=0"`
}

type WriteArgs struct {
	Connection
	SQL    string `json:"sql" validate:"required"`
	Params []any  `json:"params"`
}

type ConfirmArgs struct {
	ConfirmID string `json:"confirmId" validate:"required"`
	Timeout   int    `json:"timeout" validate:"gte=0"`
}

type BatchArgs struct {
	Connection
	SQLList []string `json:"sqlList" validate:"required,min=1,dive,required"`
	Timeout int      `json:"timeout" validate:"gte=0"`
}

type MetadataArgs struct {
	Connection
	TableName string `json:"tableName"`
}

type DDLArgs struct {
	Connection
	SQL       string `json:"sql" validate:"required"`
	Confirmed bool   `json:"confirmed"`
	Timeout   int    `json:"timeout" validate:"gte=0"`
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ArgumentError reports tool arguments that could not be decoded or failed validation.
type ArgumentError struct {
	Tool   string
	Fields []FieldError
	Err    error
}

// FieldError is one invalid argument.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ArgumentError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(parts, "; "))
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("dbkind", func(fl validator.FieldLevel) bool {
		_, err := types.ParseKind(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("register dbkind validation: %v", err))
	}
	return v
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "dbkind":
		return fmt.Sprintf("unsupported database type %q (supported: mysql, postgresql, oracle, sqlserver, kingbase)", fe.Value())
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "min":
		return "must contain at least " + fe.Param() + " item"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// decode reads raw into args and validates it. Numbers inside params keep
// integer precision.
func decode(v *validator.Validate, tool string, raw json.RawMessage, args any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(args); err != nil {
		return &ArgumentError{Tool: tool, Err: err}
	}

	if err := v.Struct(args); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ArgumentError{Tool: tool, Err: err}
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return &ArgumentError{Tool: tool, Fields: fields, Err: err}
	}
	return nil
}

// normalizeParams turns decoded JSON numbers into int64 or float64 so drivers
// bind them with a numeric type.
func normalizeParams(params []any) []any {
	if params == nil {
		return nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		n, ok := p.(json.Number)
		if !ok {
			out[i] = p
			continue
		}
		if v, err := n.Int64(); err == nil {
			out[i] = v
		} else if f, err := n.Float64(); err == nil {
			out[i] = f
		} else {
			out[i] = n.String()
		}
	}
	return out
}

package audit

import "github.com/gin-gonic/gin"

// Gin context keys carrying per-request audit overrides. Route groups declare their
// entity type and action up front via Tag; handlers refine the entry with the setters
// below once they know the record involved. Anything not overridden falls back to
// path-based resolution in the middleware.
const (
	ctxKeyEntityType  = "audit.entity_type"
	ctxKeyEntityID    = "audit.entity_id"
	ctxKeyActionType  = "audit.action_type"
	ctxKeyDescription = "audit.description"
	ctxKeyOldValues   = "audit.old_values"
	ctxKeyNewValues   = "audit.new_values"
	ctxKeySkip        = "audit.skip"
)

// Overrides collects the audit fields a route or handler pinned explicitly.
// Zero-value fields mean "not overridden".
type Overrides struct {
	EntityType  string
	EntityID    string
	ActionType  string
	Description string
	OldValues   map[string]interface{}
	NewValues   map[string]interface{}
	Skip        bool
}

// Tag returns middleware that pins the entity type and optionally the action type for
// every request passing through it. Pass an empty action to keep method/path
// classification.
func Tag(entityType, actionType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxKeyEntityType, entityType)
		if actionType != "" {
			c.Set(ctxKeyActionType, actionType)
		}
		c.Next()
	}
}

// SetEntityID pins the entity id for the current request's audit entry.
func SetEntityID(c *gin.Context, entityID string) {
	c.Set(ctxKeyEntityID, entityID)
}

// SetAction pins the action type for the current request's audit entry.
func SetAction(c *gin.Context, actionType string) {
	c.Set(ctxKeyActionType, actionType)
}

// SetDescription replaces the default "<METHOD> <path>" description.
func SetDescription(c *gin.Context, description string) {
	c.Set(ctxKeyDescription, description)
}

// SetOldValues attaches the pre-change snapshot for UPDATE and DELETE entries.
func SetOldValues(c *gin.Context, values map[string]interface{}) {
	c.Set(ctxKeyOldValues, values)
}

// SetNewValues attaches the post-change snapshot for CREATE and UPDATE entries.
func SetNewValues(c *gin.Context, values map[string]interface{}) {
	c.Set(ctxKeyNewValues, values)
}

// Skip suppresses the audit entry for the current request entirely.
func Skip(c *gin.Context) {
	c.Set(ctxKeySkip, true)
}

// OverridesFrom reads back everything Tag and the setters stored on the context.
func OverridesFrom(c *gin.Context) Overrides {
	var o Overrides
	if v, ok := c.Get(ctxKeyEntityType); ok {
		o.EntityType, _ = v.(string)
	}
	if v, ok := c.Get(ctxKeyEntityID); ok {
		o.EntityID, _ = v.(string)
	}
	if v, ok := c.Get(ctxKeyActionType); ok {
		o.ActionType, _ = v.(string)
	}
	if v, ok := c.Get(ctxKeyDescription); ok {
		o.Description, _ = v.(string)
	}
	if v, ok := c.Get(ctxKeyOldValues); ok {
		o.OldValues, _ = v.(map[string]interface{})
	}
	if v, ok := c.Get(ctxKeyNewValues); ok {
		o.NewValues, _ = v.(map[string]interface{})
	}
	if v, ok := c.Get(ctxKeySkip); ok {
		o.Skip, _ = v.(bool)
	}
	return o
}

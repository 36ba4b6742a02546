package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	jobrepos "github.com/yungbote/contractlens-backend/internal/data/repos/jobs"
	"github.com/yungbote/contractlens-backend/internal/domain/jobs"
	"github.com/yungbote/contractlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
	"github.com/yungbote/contractlens-backend/internal/services"
)

/*
Context is the execution handle for one claimed job run. Handlers never touch
job_run directly: progress and the terminal outcome go through Progress, Fail
and Succeed, which persist the row and notify subscribers.
*/
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Job    *jobs.JobRun
	Repo   jobrepos.JobRunRepo
	Notify services.JobNotifier

	payload  map[string]any
	finished bool
}

// NewContext decodes the payload eagerly. A malformed payload decodes to an
// empty map; handlers validate the fields they need.
func NewContext(ctx context.Context, db *gorm.DB, job *jobs.JobRun, repo jobrepos.JobRunRepo, notify services.JobNotifier) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil || m == nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c == nil || c.Ctx == nil || c.Job == nil {
		return
	}
	payload := c.Payload()
	traceID := payloadString(payload, "trace_id")
	reqID := payloadString(payload, "request_id")
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{
		TraceID:   traceID,
		RequestID: reqID,
		JobID:     c.Job.ID.String(),
	})
}

func payloadString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	return payloadString(c.Payload(), key)
}

// PayloadUUID parses a payload field as a non-nil UUID.
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	s := c.PayloadString(key)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// Finished reports whether Fail or Succeed has run.
func (c *Context) Finished() bool { return c != nil && c.finished }

func (c *Context) ctx() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// Progress records a non-terminal stage and refreshes the heartbeat.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.finished {
		return
	}
	now := time.Now().UTC()

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.ctx()}, c.Job.ID, []string{jobs.StatusSucceeded, jobs.StatusFailed}, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobProgress(c.Job, stage, pct, msg)
	}
}

// Fail marks the run terminally failed. Later calls are no-ops.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.finished {
		return
	}
	c.finished = true
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		// the job outlives a cancelled request context
		if uErr := c.Repo.UpdateFields(dbctx.Context{Ctx: context.WithoutCancel(c.ctx())}, c.Job.ID, map[string]interface{}{
			"status":        jobs.StatusFailed,
			"stage":         stage,
			"message":       "",
			"error":         msg,
			"last_error_at": now,
			"finished_at":   now,
			"locked_at":     nil,
			"updated_at":    now,
		}); uErr != nil {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = jobs.StatusFailed
		c.Job.Stage = stage
		c.Job.Message = ""
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.FinishedAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobFailed(c.Job, stage, msg)
	}
}

// Succeed marks the run done and stores result as JSON. Later calls are no-ops.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil || c.finished {
		return
	}
	c.finished = true
	now := time.Now().UTC()
	res := datatypes.JSON([]byte("{}"))
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			res = datatypes.JSON(b)
		}
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		if uErr := c.Repo.UpdateFields(dbctx.Context{Ctx: context.WithoutCancel(c.ctx())}, c.Job.ID, map[string]interface{}{
			"status":       jobs.StatusSucceeded,
			"stage":        finalStage,
			"progress":     100,
			"message":      "",
			"error":        "",
			"result":       res,
			"finished_at":  now,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		}); uErr != nil {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = jobs.StatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Message = ""
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.FinishedAt = &now
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobDone(c.Job)
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tracklet-io/tracklet/internal/apperr"
	"github.com/tracklet-io/tracklet/internal/auth"
	"github.com/tracklet-io/tracklet/internal/model"
)

// MilestoneMetadataDone marks the end of context construction in the
// run's outcome trail.
const MilestoneMetadataDone = "metadata generation done"

// RunStore is the subset of the run store client the pipeline needs.
type RunStore interface {
	CreateRun(ctx context.Context, req model.CreateRunRequest) (int64, error)
	UpdateRunStatus(ctx context.Context, req model.UpdateRunStatusRequest) error
	GetRun(ctx context.Context, idRun int64) (model.Run, error)
	InsertLog(ctx context.Context, entry model.LogEntry) error
	SaveOutcome(ctx context.Context, outcome model.Outcome) error
	GetDataRunTypes(ctx context.Context, idCategory, idType int) ([]model.DataRunType, error)
}

// CredentialValidator is the subset of the identity client the pipeline
// needs.
type CredentialValidator interface {
	GetToken(ctx context.Context, user, password string) (*model.Credentials, error)
	RefreshToken(ctx context.Context, refreshToken string) (*model.TokenPair, error)
}

// Builder resolves authentication and creates run records, producing a
// RunContext per request. One Builder serves a whole service; it holds
// no per-request state.
type Builder struct {
	Runs     RunStore
	Identity CredentialValidator
	Tokens   *auth.Manager
	Logger   *slog.Logger

	// ServiceName and IDService identify this service in run rows and
	// in payloads dispatched downstream.
	ServiceName string
	IDService   int64

	// DefaultIDScript is used when the payload carries no id_script.
	// Nil means the payload must supply one.
	DefaultIDScript *int64
}

// Build produces a fully-populated RunContext from a request payload
// and headers, or a classified error. When use_db is true it performs
// exactly one run-creation call and one status update against the run
// store; when false it touches nothing. When a store call fails after
// the run was already created, the partially built context is returned
// with the error so the caller can record the failing status on the
// run and report its id.
func (b *Builder) Build(ctx context.Context, p Payload, header http.Header) (*RunContext, error) {
	const op = "pipeline.Build"

	p.credentialsFromHeader(header)

	rc := &RunContext{
		UseDB:           true,
		IDService:       b.IDService,
		User:            p.User,
		Password:        p.Password,
		TokenAccess:     p.TokenAccess,
		TokenRefresh:    p.TokenRefresh,
		IDFatherRun:     p.IDFatherRun,
		IDFatherService: p.IDFatherService,
		Start:           time.Now(),
	}
	if p.UseDB != nil {
		rc.UseDB = *p.UseDB
	}

	switch {
	case p.IDScript != nil:
		rc.IDScript = *p.IDScript
	case b.DefaultIDScript != nil:
		rc.IDScript = *b.DefaultIDScript
	default:
		if rc.UseDB {
			return nil, apperr.Validation(op, "id_script is required")
		}
	}

	// Unpersisted operation: no auth, no run, console-only logging.
	if !rc.UseDB {
		return rc, nil
	}

	if err := b.authenticate(ctx, rc); err != nil {
		return nil, err
	}

	if rc.IDFatherRun != nil && rc.IDFatherService == nil {
		return nil, apperr.Validation(op, "id_father_service is required when id_father_run is set")
	}

	idRun, err := b.Runs.CreateRun(ctx, model.CreateRunRequest{
		IDScript:        &rc.IDScript,
		IDUser:          rc.IDUser,
		FatherServiceID: rc.IDFatherService,
		IDRunFather:     rc.IDFatherRun,
	})
	if err != nil {
		return nil, err
	}
	rc.IDRun = &idRun

	b.logScriptName(ctx, rc)

	milestone := MilestoneMetadataDone
	if err := b.SaveOutcome(ctx, rc, model.Outcome{
		IDCategory: model.CategoryRuntime,
		IDType:     model.TypeMetadata,
		VString:    &milestone,
	}); err != nil {
		return rc, err
	}
	if err := b.UpdateStatus(ctx, rc, nil, milestone); err != nil {
		return rc, err
	}
	return rc, nil
}

// logScriptName labels the new run with its script's catalog entry.
// Best-effort: a failed lookup or an uncataloged script falls back to
// the bare script id.
func (b *Builder) logScriptName(ctx context.Context, rc *RunContext) {
	name := fmt.Sprintf("script %d", rc.IDScript)
	types, err := b.Runs.GetDataRunTypes(ctx, 0, int(rc.IDScript))
	switch {
	case err != nil:
		b.Logger.WarnContext(ctx, "catalog lookup failed", "error", err, "id_script", rc.IDScript)
	case len(types) > 0:
		name = types[0].CategoryName + " - " + types[0].TypeName
	}
	b.LogDebug(ctx, rc, "running "+name)
}

// authenticate resolves IDUser from a token or from user/password.
// Once a token was presented, password auth is never substituted: an
// invalid token that cannot be refreshed fails the request outright.
func (b *Builder) authenticate(ctx context.Context, rc *RunContext) error {
	const op = "pipeline.authenticate"

	if rc.TokenAccess != "" {
		claims, err := b.Tokens.ValidateAccess(rc.TokenAccess)
		if err == nil {
			rc.IDUser = &claims.IDUser
			return nil
		}
		if !errors.Is(err, auth.ErrExpired) || rc.TokenRefresh == "" {
			return apperr.Wrap(apperr.KindAuth, op, "invalid access token", err)
		}

		pair, err := b.Identity.RefreshToken(ctx, rc.TokenRefresh)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindAuth {
				return apperr.Wrap(apperr.KindAuth, op, "token expired and refresh failed", err)
			}
			return err
		}
		rc.TokenAccess = pair.TokenAccess
		rc.TokenRefresh = pair.TokenRefresh

		claims, err = b.Tokens.ValidateAccess(rc.TokenAccess)
		if err != nil {
			return apperr.Wrap(apperr.KindAuth, op, "refreshed token is invalid", err)
		}
		rc.IDUser = &claims.IDUser
		return nil
	}

	if rc.User == "" {
		return apperr.Auth(op, "no credentials provided")
	}
	creds, err := b.Identity.GetToken(ctx, rc.User, rc.Password)
	if err != nil {
		return err
	}
	rc.IDUser = &creds.IDUser
	rc.TokenAccess = creds.TokenAccess
	rc.TokenRefresh = creds.TokenRefresh
	return nil
}

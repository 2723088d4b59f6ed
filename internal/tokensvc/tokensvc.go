// Package tokensvc mints, verifies, and revokes Delegation Capability
// Tokens (DCTs), enforcing parent-agent binding and scope-subset
// attenuation per spec.md §4.4. Grounded on
// tools/credentials-mcp/main.go's requestSecret/resolveRequest pattern:
// a capability is requested, possibly gated behind approval, then
// exchanged for a signed bearer.
package tokensvc

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clawos/internal/apierr"
	"clawos/internal/idgen"
	"clawos/internal/kerneldomain"
	"clawos/internal/kernelcrypto"
	"clawos/internal/store"
)

type Service struct {
	store  *store.Store
	crypto *kernelcrypto.Crypto

	ttlDefault time.Duration
	ttlMax     time.Duration
}

func New(st *store.Store, c *kernelcrypto.Crypto, ttlDefault, ttlMax time.Duration) *Service {
	return &Service{store: st, crypto: c, ttlDefault: ttlDefault, ttlMax: ttlMax}
}

// MintRequest carries everything needed to mint a DCT for either an
// agent or a subagent issue-target.
type MintRequest struct {
	WorkspaceID      string
	RequestingAgent  string
	IssueToKind      kerneldomain.IssuedToKind
	IssueToID        string
	TaskID           string
	Scope            kerneldomain.Scope
	TTL              time.Duration
}

// Mint enforces:
//   - agents may only request tokens issued to themselves (P3, when
//     issue_to.kind == agent);
//   - subagent-kind tokens MUST carry parent_agent_id, and the
//     requesting agent MUST be that subagent's actual parent (P3);
//   - the minted scope MUST be a subset of the task's contract scope,
//     the attenuation ceiling chosen to resolve spec.md §9's open
//     question (see DESIGN.md).
func (s *Service) Mint(ctx context.Context, req MintRequest) (string, kerneldomain.DCT, error) {
	if req.IssueToKind == kerneldomain.IssuedToAgent && req.IssueToID != req.RequestingAgent {
		return "", kerneldomain.DCT{}, apierr.ErrAgentsOnlyRequestOwnTokens
	}

	parentAgentID := ""
	if req.IssueToKind == kerneldomain.IssuedToSubagent {
		if req.IssueToID == "" {
			return "", kerneldomain.DCT{}, apierr.MissingField("issue_to.id")
		}
		sub, err := s.store.GetSubagent(ctx, req.IssueToID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", kerneldomain.DCT{}, apierr.ErrSubagentNotFound
			}
			return "", kerneldomain.DCT{}, err
		}
		if sub.WorkspaceID != req.WorkspaceID {
			return "", kerneldomain.DCT{}, apierr.ErrWorkspaceMismatch
		}
		if sub.ParentAgentID != req.RequestingAgent {
			return "", kerneldomain.DCT{}, apierr.ErrAgentsOnlyRequestOwnTokens
		}
		parentAgentID = sub.ParentAgentID
		if req.TaskID == "" {
			req.TaskID = sub.TaskID
		}
	}

	if req.TaskID != "" {
		task, err := s.store.GetTask(ctx, req.TaskID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", kerneldomain.DCT{}, apierr.ErrTaskNotFound
			}
			return "", kerneldomain.DCT{}, err
		}
		if task.WorkspaceID != req.WorkspaceID {
			return "", kerneldomain.DCT{}, apierr.ErrWorkspaceMismatch
		}
		if !req.Scope.Subset(task.Contract.Scope) {
			return "", kerneldomain.DCT{}, apierr.Policy("scope_exceeds_parent_authority")
		}
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = s.ttlDefault
	}
	if ttl > s.ttlMax {
		ttl = s.ttlMax
	}

	now := time.Now().UTC()
	dct := kerneldomain.DCT{
		TokenID:       idgen.New("dct"),
		WorkspaceID:   req.WorkspaceID,
		IssuedToKind:  req.IssueToKind,
		IssuedToID:    req.IssueToID,
		ParentAgentID: parentAgentID,
		TaskID:        req.TaskID,
		Scope:         req.Scope,
		TTLSeconds:    int(ttl.Seconds()),
		ExpiresAt:     now.Add(ttl),
		CreatedAt:     now,
	}
	if err := s.store.InsertDCT(ctx, dct); err != nil {
		return "", kerneldomain.DCT{}, err
	}
	return s.crypto.Bearer(dct.TokenID), dct, nil
}

var ErrInvalidToken = errors.New("invalid or expired token")

// Verify parses the bearer, checks the HMAC signature, and re-reads the
// DCT row fresh so revocation is immediate. Every failure mode (bad
// format, bad signature, missing row, revoked, expired) collapses to
// the same ErrInvalidToken per spec.md §4.4's "returns null".
func (s *Service) Verify(ctx context.Context, bearer string) (kerneldomain.DCT, error) {
	tokenID, err := s.crypto.Verify(bearer)
	if err != nil {
		return kerneldomain.DCT{}, ErrInvalidToken
	}
	dct, err := s.store.GetDCT(ctx, tokenID)
	if err != nil {
		return kerneldomain.DCT{}, ErrInvalidToken
	}
	if dct.Revoked || dct.Expired(time.Now().UTC()) {
		return kerneldomain.DCT{}, ErrInvalidToken
	}
	return dct, nil
}

// MintActionCap mints an action-level cap token bound to one
// (workspace, action_request_id, tool_name) triple, issued by the
// dispatcher after an action-level approval is granted (spec.md §4.6).
func (s *Service) MintActionCap(ctx context.Context, workspaceID, actionRequestID, toolName string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.ttlDefault
	}
	if ttl > s.ttlMax {
		ttl = s.ttlMax
	}
	now := time.Now().UTC()
	dct := kerneldomain.DCT{
		TokenID:      idgen.New("cap"),
		WorkspaceID:  workspaceID,
		IssuedToKind: kerneldomain.IssuedToActionCap,
		IssuedToID:   actionRequestID,
		Scope:        kerneldomain.Scope{Operations: []string{toolName}},
		TTLSeconds:   int(ttl.Seconds()),
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}
	if err := s.store.InsertDCT(ctx, dct); err != nil {
		return "", err
	}
	return s.crypto.Bearer(dct.TokenID), nil
}

// VerifyActionCap checks that bearer is a live cap token bound to this
// exact (workspace, action_request_id, tool_name) triple, per spec.md
// §4.5's approval-token verification step. Any mismatch is treated as
// a missing approval, matching "Any failure → treat as missing approval."
func (s *Service) VerifyActionCap(ctx context.Context, bearer, workspaceID, actionRequestID, toolName string) bool {
	dct, err := s.Verify(ctx, bearer)
	if err != nil {
		return false
	}
	if dct.IssuedToKind != kerneldomain.IssuedToActionCap {
		return false
	}
	if dct.WorkspaceID != workspaceID || dct.IssuedToID != actionRequestID {
		return false
	}
	for _, op := range dct.Scope.Operations {
		if op == toolName {
			return true
		}
	}
	return false
}

// Revoke is an idempotent flag flip.
func (s *Service) Revoke(ctx context.Context, tokenID string) error {
	return s.store.RevokeDCT(ctx, tokenID)
}

// PurgeExpired deletes every expired DCT row; called once at boot per
// spec.md §5 ("at boot, delete all expired tokens").
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredDCTs(ctx)
}

package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/upb/cluster-policy-builder/internal/observability"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/services"
	"github.com/upb/cluster-policy-builder/utils"
	"go.uber.org/zap"
)

// State is the submission state of a draft
type State string

const (
	StateDrafting   State = "drafting"
	StateSubmitting State = "submitting"
	StatePersisted  State = "persisted"
)

// Store is the remote policy store
type Store interface {
	List(ctx context.Context) ([]models.PolicySummary, error)
	Get(ctx context.Context, id string) (*models.Policy, error)
	Create(ctx context.Context, req models.PolicyRequest) (string, error)
	Update(ctx context.Context, id string, req models.PolicyRequest) error
}

// FamilyCatalog resolves policy families and tracks the policy list cursor
type FamilyCatalog interface {
	Family(ctx context.Context, id string) (*models.PolicyFamily, error)
	BumpPolicies() uint64
}

// policyLinker is implemented by stores that can link to a policy page
type policyLinker interface {
	PolicyURL(id string) string
}

// Form carries the policy metadata entered at submission time
type Form struct {
	Name               string `json:"name" validate:"notblank"`
	Description        string `json:"description"`
	MaxClustersPerUser *int   `json:"max_clusters_per_user,omitempty" validate:"omitempty,gte=0"`
}

// FormFor prefills a form from the draft metadata
func FormFor(d corepolicy.Draft) Form {
	return Form{Name: d.Name, Description: d.Description, MaxClustersPerUser: d.MaxClustersPerUser}
}

// Outcome is the result of a submission attempt. On failure the editor is
// the unchanged input and the state is back to drafting.
type Outcome struct {
	State        State                `json:"state"`
	Editor       corepolicy.Editor    `json:"editor"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// Coordinator decides between create and update, assembles the payload and
// drives a draft through Drafting, Submitting and Persisted.
type Coordinator struct {
	store    Store
	families FamilyCatalog
	catalog  *corepolicy.Catalog
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewCoordinator creates a new Coordinator instance
func NewCoordinator(store Store, families FamilyCatalog, catalog *corepolicy.Catalog, metrics *observability.Metrics, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		families: families,
		catalog:  catalog,
		metrics:  metrics,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// ValidateForm checks the submission form. Details name one failing field:
// the name when it is missing, else the first failing field in order.
func ValidateForm(form Form) error {
	err := utils.ValidateStruct(form)
	if err == nil {
		return nil
	}
	fields := utils.GetValidationFields(err)
	if reason, ok := fields["name"]; ok {
		return services.NewDomainError(services.ErrorTypeValidation, services.ErrNameRequired.Message, err).
			WithDetail("field", "name").
			WithDetail("reason", reason)
	}

	domainErr := services.NewDomainError(services.ErrorTypeValidation, "invalid submission form", err)
	names := make([]string, 0, len(fields))
	for field := range fields {
		names = append(names, field)
	}
	sort.Strings(names)
	if len(names) > 0 {
		domainErr.WithDetail("field", names[0]).WithDetail("reason", fields[names[0]])
	}
	return domainErr
}

// BuildRequest assembles the create or update payload. It is pure: the same
// draft and form always produce the same request.
func BuildRequest(d corepolicy.Draft, form Form) (models.PolicyRequest, error) {
	if err := ValidateForm(form); err != nil {
		return models.PolicyRequest{}, err
	}

	req := models.PolicyRequest{
		Name:        form.Name,
		Description: form.Description,
		FamilyID:    d.FamilyID,
	}
	if form.MaxClustersPerUser != nil && *form.MaxClustersPerUser != 0 {
		n := *form.MaxClustersPerUser
		req.MaxClustersPerUser = &n
	}
	if d.Libraries != nil {
		req.Libraries = append(req.Libraries, d.Libraries...)
	}

	if d.FamilyBased() {
		if len(d.Definition) > 0 {
			return models.PolicyRequest{}, services.FromPolicyError(
				fmt.Errorf("%w: draft for family %s carries a standalone definition", corepolicy.ErrMergeAuthority, d.FamilyID))
		}
		req.Overrides = d.Overrides.Clone()
		if req.Overrides == nil {
			req.Overrides = corepolicy.Definition{}
		}
		return req, nil
	}

	if len(d.Overrides) > 0 {
		return models.PolicyRequest{}, services.FromPolicyError(
			fmt.Errorf("%w: standalone draft carries family overrides", corepolicy.ErrMergeAuthority))
	}
	req.Definition = d.Definition.Clone()
	if req.Definition == nil {
		req.Definition = corepolicy.Definition{}
	}
	return req, nil
}

// Submit sends the editor's draft to the store. key identifies the caller's
// draft (the session id); a second submission under the same key while one is
// in flight is rejected.
func (c *Coordinator) Submit(ctx context.Context, key string, e corepolicy.Editor, form Form) (Outcome, error) {
	failed := Outcome{State: StateDrafting, Editor: e}

	req, err := BuildRequest(e.Draft, form)
	if err != nil {
		if services.IsInternalError(err) {
			c.logger.Error("rejected submission", zap.String("session_id", key), zap.Error(err))
		}
		return failed, err
	}

	if !c.begin(key) {
		return failed, services.ErrSubmissionInProgress
	}
	defer c.end(key)

	operation := "create"
	if e.Draft.Persisted() {
		operation = "update"
	}
	c.logger.Info("submitting policy",
		zap.String("session_id", key),
		zap.String("operation", operation),
		zap.String("state", string(StateSubmitting)),
		zap.String("policy_id", e.Draft.ID),
		zap.String("family_id", e.Draft.FamilyID))

	start := time.Now()
	id := e.Draft.ID
	if operation == "update" {
		err = c.store.Update(ctx, id, req)
	} else {
		id, err = c.store.Create(ctx, req)
	}
	c.metrics.RecordSubmission(operation, time.Since(start), err)

	if err != nil {
		if services.GetErrorType(err) == "" {
			err = services.WrapExternal("policy submission failed", err)
		}
		c.logger.Warn("policy submission failed",
			zap.String("session_id", key),
			zap.String("operation", operation),
			zap.Error(err))
		return failed, err
	}

	c.families.BumpPolicies()

	notification := &models.Notification{PolicyID: id, Name: req.Name, Created: operation == "create"}
	if linker, ok := c.store.(policyLinker); ok {
		notification.URL = linker.PolicyURL(id)
	}

	c.logger.Info("policy submitted",
		zap.String("session_id", key),
		zap.String("operation", operation),
		zap.String("policy_id", id))

	return Outcome{State: StatePersisted, Editor: corepolicy.NewEditor(), Notification: notification}, nil
}

// Clone copies the loaded policy into a fresh unsaved draft
func (c *Coordinator) Clone(e corepolicy.Editor) (corepolicy.Editor, error) {
	if !e.Draft.Persisted() {
		return e, services.ErrNothingToClone
	}
	return corepolicy.LoadEditor(e.Draft.Copy(), e.FamilyBase), nil
}

// Load fetches a stored policy into a new editor. Family based policies load
// their overrides together with the family base.
func (c *Coordinator) Load(ctx context.Context, id string) (corepolicy.Editor, error) {
	p, err := c.store.Get(ctx, id)
	if err != nil {
		return corepolicy.Editor{}, err
	}

	draft := p.Draft()
	var base corepolicy.Definition
	if p.FamilyBased() {
		family, err := c.families.Family(ctx, p.FamilyID)
		if err != nil {
			return corepolicy.Editor{}, err
		}
		base = family.Definition
	}

	// Attributes outside the catalog are kept so an update round-trips them.
	if err := draft.Target().Validate(c.catalog); err != nil {
		c.logger.Warn("loaded policy does not match the attribute catalog",
			zap.String("policy_id", id),
			zap.Error(err))
	}

	return corepolicy.LoadEditor(draft, base), nil
}

// Start begins an empty draft, bound to a family when familyID is set
func (c *Coordinator) Start(ctx context.Context, familyID string) (corepolicy.Editor, error) {
	if familyID == "" {
		return corepolicy.NewEditor(), nil
	}
	family, err := c.families.Family(ctx, familyID)
	if err != nil {
		return corepolicy.Editor{}, err
	}
	return corepolicy.NewFamilyEditor(family.ID, family.Definition), nil
}

func (c *Coordinator) begin(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *Coordinator) end(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

package app

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/auth"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/authpw"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/config"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/email"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/export"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/files"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/gate"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/history"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/llm"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/pipeline"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/rbac"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/reconcile"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/search"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/store"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/tradedoc"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type BuyerInput struct {
	Company     string `json:"company"`
	Country     string `json:"country"`
	ContactName string `json:"contactName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Channel     string `json:"channel"`
	Grade       string `json:"grade"`
	Memo        string `json:"memo"`
}

type ProjectInput struct {
	BuyerID  string `json:"buyerId"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

var allowedChannels = map[string]struct{}{
	"inbound":    {},
	"exhibition": {},
	"outreach":   {},
	"referral":   {},
}

var allowedGrades = map[string]struct{}{
	"A": {},
	"B": {},
	"C": {},
}

type dataStore interface {
	SaveRefreshSession(context.Context, string, store.User, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	GetUserByID(context.Context, string) (store.User, error)
	ListBuyers(context.Context) ([]store.Buyer, error)
	GetBuyer(context.Context, string) (store.Buyer, error)
	InsertBuyer(context.Context, store.Buyer) error
	UpdateBuyer(context.Context, store.Buyer) error
	DeleteBuyer(context.Context, string) error
	ListProjects(context.Context) ([]store.Project, error)
	GetProject(context.Context, string) (store.Project, error)
	InsertProject(context.Context, store.Project) error
	UpdateProjectStage(context.Context, string, string) error
	ListProjectDocuments(context.Context, string) ([]store.ProjectDocument, error)
	GetProjectDocument(context.Context, string, string) (store.ProjectDocument, error)
	UpsertProjectDocument(context.Context, store.ProjectDocument) error
	DeleteProjectDocument(context.Context, string, string) error
	InsertGateRun(context.Context, store.GateRun) error
	ListGateRuns(context.Context, string, int) ([]store.GateRun, error)
	InsertAttachment(context.Context, store.Attachment) error
	ListAttachments(context.Context, string) ([]store.Attachment, error)
	GetAttachment(context.Context, string) (store.Attachment, error)
	Ping(ctx context.Context) error
}

// sessionStore is the refresh token backend: Redis when configured,
// Postgres otherwise.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type historyService interface {
	EnsureProjectRepo(projectID, author string) error
	CommitDocument(projectID string, doc tradedoc.Document, author, message string) (history.CommitInfo, error)
	GetDocumentAt(projectID string, key tradedoc.Key, hash string) (tradedoc.Document, error)
	DocumentHistory(projectID string, key tradedoc.Key, limit int) ([]history.CommitInfo, error)
	ProjectHistory(projectID string, limit int) ([]history.CommitInfo, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	history  historyService
	search   *search.Service
	exporter *export.Service
	files    *files.Store
	llm      *llm.Client
	email    *email.Service
	authpw   *authpw.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, historyService *history.Service, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		history:  historyService,
		search:   searchService,
	}
}

// NewWithSessionStore builds a service whose refresh tokens live in a
// dedicated session backend instead of Postgres.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, historyService *history.Service, searchService *search.Service) *Service {
	s := New(cfg, dataStore, historyService, searchService)
	s.sessions = sessions
	return s
}

func (s *Service) SetAuthPasswordService(svc *authpw.Service) { s.authpw = svc }
func (s *Service) SetEmailService(svc *email.Service)         { s.email = svc }
func (s *Service) SetExportService(svc *export.Service)       { s.exporter = svc }
func (s *Service) SetFileStore(fs *files.Store)               { s.files = fs }
func (s *Service) SetLLMClient(c *llm.Client)                 { s.llm = c }

func (s *Service) AuthPasswordService() *authpw.Service { return s.authpw }

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Bootstrap seeds a demo buyer and project on an empty database and warms
// the search index. Failures are returned for logging but never fatal.
func (s *Service) Bootstrap(ctx context.Context) error {
	buyers, err := s.store.ListBuyers(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: list buyers: %w", err)
	}
	if len(buyers) == 0 {
		buyer := store.Buyer{
			ID:          util.NewID("byr"),
			Company:     "Pacific Beauty Trading LLC",
			Country:     "US",
			ContactName: "Dana Whitfield",
			Email:       "dana@pacificbeautytrading.example",
			Channel:     "inbound",
			Grade:       "B",
			Memo:        "Sample account created at first startup.",
		}
		if err := s.store.InsertBuyer(ctx, buyer); err != nil {
			return fmt.Errorf("bootstrap: seed buyer: %w", err)
		}
		project := store.Project{
			ID:        util.NewID("prj"),
			BuyerID:   buyer.ID,
			Name:      "Hydra Glow Serum Launch",
			Stage:     string(pipeline.StageLead),
			Currency:  "USD",
			CreatedBy: "system",
		}
		if err := s.store.InsertProject(ctx, project); err != nil {
			return fmt.Errorf("bootstrap: seed project: %w", err)
		}
		if err := s.history.EnsureProjectRepo(project.ID, "system"); err != nil {
			return fmt.Errorf("bootstrap: init project history: %w", err)
		}
	}
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

// ----- sessions -----

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ----- buyers -----

func (s *Service) ListBuyers(ctx context.Context) ([]map[string]any, error) {
	buyers, err := s.store.ListBuyers(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(buyers))
	for _, b := range buyers {
		items = append(items, buyerPayload(b))
	}
	return items, nil
}

func (s *Service) GetBuyer(ctx context.Context, buyerID string) (map[string]any, error) {
	b, err := s.store.GetBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return buyerPayload(b), nil
}

func (s *Service) CreateBuyer(ctx context.Context, input BuyerInput) (map[string]any, error) {
	b, err := buyerFromInput(store.Buyer{ID: util.NewID("byr")}, input)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertBuyer(ctx, b); err != nil {
		return nil, err
	}
	s.indexBuyer(b)
	return buyerPayload(b), nil
}

func (s *Service) UpdateBuyer(ctx context.Context, buyerID string, input BuyerInput) (map[string]any, error) {
	existing, err := s.store.GetBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	b, err := buyerFromInput(existing, input)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateBuyer(ctx, b); err != nil {
		return nil, err
	}
	s.indexBuyer(b)
	return buyerPayload(b), nil
}

func (s *Service) DeleteBuyer(ctx context.Context, buyerID string) error {
	if err := s.store.DeleteBuyer(ctx, buyerID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteBuyer(buyerID)
	}
	return nil
}

func buyerFromInput(base store.Buyer, input BuyerInput) (store.Buyer, error) {
	company := strings.TrimSpace(input.Company)
	if company == "" {
		return store.Buyer{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "company is required", nil)
	}
	channel := strings.TrimSpace(input.Channel)
	if channel == "" {
		channel = "inbound"
	}
	if _, ok := allowedChannels[channel]; !ok {
		return store.Buyer{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown channel", map[string]any{"channel": channel})
	}
	grade := strings.ToUpper(strings.TrimSpace(input.Grade))
	if grade == "" {
		grade = "C"
	}
	if _, ok := allowedGrades[grade]; !ok {
		return store.Buyer{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "grade must be A, B, or C", map[string]any{"grade": grade})
	}

	base.Company = company
	base.Country = strings.TrimSpace(input.Country)
	base.ContactName = strings.TrimSpace(input.ContactName)
	base.Email = strings.TrimSpace(input.Email)
	base.Phone = strings.TrimSpace(input.Phone)
	base.Channel = channel
	base.Grade = grade
	base.Memo = input.Memo
	return base, nil
}

func buyerPayload(b store.Buyer) map[string]any {
	return map[string]any{
		"id":          b.ID,
		"company":     b.Company,
		"country":     b.Country,
		"contactName": b.ContactName,
		"email":       b.Email,
		"phone":       b.Phone,
		"channel":     b.Channel,
		"grade":       b.Grade,
		"memo":        b.Memo,
		"createdAt":   b.CreatedAt,
		"updatedAt":   b.UpdatedAt,
	}
}

func (s *Service) indexBuyer(b store.Buyer) {
	if s.search == nil {
		return
	}
	s.search.IndexBuyer(search.BuyerRecord{
		ID:          b.ID,
		Company:     b.Company,
		Country:     b.Country,
		ContactName: b.ContactName,
		Channel:     b.Channel,
		Memo:        b.Memo,
	})
}

// ----- projects -----

func (s *Service) ListProjects(ctx context.Context) ([]map[string]any, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		payload := projectPayload(p)
		if buyer, err := s.store.GetBuyer(ctx, p.BuyerID); err == nil {
			payload["buyerCompany"] = buyer.Company
			payload["buyerCountry"] = buyer.Country
		}
		items = append(items, payload)
	}
	return items, nil
}

func (s *Service) GetProject(ctx context.Context, projectID string) (map[string]any, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	payload := projectPayload(p)
	if buyer, err := s.store.GetBuyer(ctx, p.BuyerID); err == nil {
		payload["buyer"] = buyerPayload(buyer)
	}

	docs, err := s.store.ListProjectDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	docPayloads := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		docPayloads = append(docPayloads, documentPayload(d))
	}
	payload["documents"] = docPayloads

	runs, err := s.store.ListGateRuns(ctx, projectID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		payload["lastGateRun"] = gateRunPayload(runs[0])
	}
	return payload, nil
}

func (s *Service) CreateProject(ctx context.Context, input ProjectInput, userName string) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	buyer, err := s.store.GetBuyer(ctx, strings.TrimSpace(input.BuyerID))
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "buyerId does not exist", nil)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	p := store.Project{
		ID:        util.NewID("prj"),
		BuyerID:   buyer.ID,
		Name:      name,
		Stage:     string(pipeline.StageLead),
		Currency:  currency,
		CreatedBy: userName,
	}
	if err := s.store.InsertProject(ctx, p); err != nil {
		return nil, err
	}
	if err := s.history.EnsureProjectRepo(p.ID, userName); err != nil {
		return nil, fmt.Errorf("init project history: %w", err)
	}
	s.indexProject(p, buyer.Company)

	payload := projectPayload(p)
	payload["buyer"] = buyerPayload(buyer)
	payload["documents"] = []map[string]any{}
	return payload, nil
}

func projectPayload(p store.Project) map[string]any {
	return map[string]any{
		"id":        p.ID,
		"buyerId":   p.BuyerID,
		"name":      p.Name,
		"stage":     p.Stage,
		"currency":  p.Currency,
		"createdBy": p.CreatedBy,
		"createdAt": p.CreatedAt,
		"updatedAt": p.UpdatedAt,
	}
}

func (s *Service) indexProject(p store.Project, buyerCompany string) {
	if s.search == nil {
		return
	}
	s.search.IndexProject(search.ProjectRecord{
		ID:      p.ID,
		Name:    p.Name,
		BuyerID: p.BuyerID,
		Company: buyerCompany,
		Stage:   p.Stage,
	})
}

// ----- trade documents -----

func (s *Service) GetDocumentSet(ctx context.Context, projectID string) ([]tradedoc.Document, error) {
	rows, err := s.store.ListProjectDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	docs := make([]tradedoc.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeStoredDocument(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeStoredDocument(row store.ProjectDocument) (tradedoc.Document, error) {
	var fields tradedoc.Fields
	if len(row.Fields) > 0 {
		if err := json.Unmarshal(row.Fields, &fields); err != nil {
			return tradedoc.Document{}, fmt.Errorf("decode document %s: %w", row.DocKey, err)
		}
	}
	return tradedoc.Document{Key: tradedoc.Key(row.DocKey), Fields: fields}, nil
}

func documentPayload(row store.ProjectDocument) map[string]any {
	return map[string]any{
		"id":        row.ID,
		"projectId": row.ProjectID,
		"docKey":    row.DocKey,
		"fields":    row.Fields,
		"updatedBy": row.UpdatedBy,
		"updatedAt": row.UpdatedAt,
	}
}

func (s *Service) GetDocument(ctx context.Context, projectID, rawKey string) (map[string]any, error) {
	key := tradedoc.NormalizeKey(rawKey)
	if key == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown document key", map[string]any{"docKey": rawKey})
	}
	row, err := s.store.GetProjectDocument(ctx, projectID, string(key))
	if err != nil {
		return nil, err
	}
	return documentPayload(row), nil
}

// SaveDocument replaces the current instance of one document role and
// records the revision in the project's history repo.
func (s *Service) SaveDocument(ctx context.Context, projectID, rawKey string, fields tradedoc.Fields, userName, message string) (map[string]any, error) {
	key := tradedoc.NormalizeKey(rawKey)
	if key == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown document key", map[string]any{"docKey": rawKey})
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document fields: %w", err)
	}
	row := store.ProjectDocument{
		ID:        util.NewID("doc"),
		ProjectID: projectID,
		DocKey:    string(key),
		Fields:    payload,
		UpdatedBy: userName,
	}
	if err := s.store.UpsertProjectDocument(ctx, row); err != nil {
		return nil, err
	}

	if err := s.history.EnsureProjectRepo(projectID, userName); err != nil {
		return nil, fmt.Errorf("init project history: %w", err)
	}
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("Update %s", key)
	}
	commit, err := s.history.CommitDocument(projectID, tradedoc.Document{Key: key, Fields: fields}, userName, message)
	if err != nil {
		return nil, fmt.Errorf("record document revision: %w", err)
	}

	saved, err := s.store.GetProjectDocument(ctx, projectID, string(key))
	if err != nil {
		return nil, err
	}
	result := documentPayload(saved)
	result["commit"] = commit
	return result, nil
}

func (s *Service) DeleteDocument(ctx context.Context, projectID, rawKey string) error {
	key := tradedoc.NormalizeKey(rawKey)
	if key == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown document key", map[string]any{"docKey": rawKey})
	}
	return s.store.DeleteProjectDocument(ctx, projectID, string(key))
}

func (s *Service) DocumentHistory(ctx context.Context, projectID, rawKey string, limit int) ([]history.CommitInfo, error) {
	key := tradedoc.NormalizeKey(rawKey)
	if key == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown document key", map[string]any{"docKey": rawKey})
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.history.DocumentHistory(projectID, key, limit)
}

func (s *Service) DocumentAtRevision(ctx context.Context, projectID, rawKey, hash string) (tradedoc.Document, error) {
	key := tradedoc.NormalizeKey(rawKey)
	if key == "" {
		return tradedoc.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown document key", map[string]any{"docKey": rawKey})
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return tradedoc.Document{}, err
	}
	return s.history.GetDocumentAt(projectID, key, hash)
}

func (s *Service) ProjectHistory(ctx context.Context, projectID string, limit int) ([]history.CommitInfo, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.history.ProjectHistory(projectID, limit)
}

// ----- gate -----

// RunGate evaluates every registered check against the project's current
// document set and persists the run for audit.
func (s *Service) RunGate(ctx context.Context, projectID, userName string) (gate.Result, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return gate.Result{}, err
	}
	docs, err := s.GetDocumentSet(ctx, projectID)
	if err != nil {
		return gate.Result{}, err
	}

	result := gate.Run(docs)
	if err := s.persistGateRun(ctx, projectID, userName, result); err != nil {
		return gate.Result{}, err
	}
	return result, nil
}

func (s *Service) persistGateRun(ctx context.Context, projectID, userName string, result gate.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode gate result: %w", err)
	}
	return s.store.InsertGateRun(ctx, store.GateRun{
		ID:             util.NewID("gate"),
		ProjectID:      projectID,
		Passed:         result.Passed,
		PassedChecks:   result.PassedChecks,
		RequiredChecks: result.RequiredChecks,
		Payload:        payload,
		RanBy:          userName,
	})
}

func (s *Service) ListGateRuns(ctx context.Context, projectID string, limit int) ([]map[string]any, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	runs, err := s.store.ListGateRuns(ctx, projectID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		items = append(items, gateRunPayload(run))
	}
	return items, nil
}

func gateRunPayload(run store.GateRun) map[string]any {
	return map[string]any{
		"id":             run.ID,
		"projectId":      run.ProjectID,
		"passed":         run.Passed,
		"passedChecks":   run.PassedChecks,
		"requiredChecks": run.RequiredChecks,
		"result":         json.RawMessage(run.Payload),
		"ranBy":          run.RanBy,
		"createdAt":      run.CreatedAt,
	}
}

// ----- pipeline -----

// AdvanceStage moves a project to its next pipeline stage. Leaving sample
// review runs the gate; a blocked advance returns a DomainError carrying
// the findings and keeps the project where it is. Every gate run is
// persisted, blocked or not.
func (s *Service) AdvanceStage(ctx context.Context, projectID, userName string) (map[string]any, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	docs, err := s.GetDocumentSet(ctx, projectID)
	if err != nil {
		return nil, err
	}

	next, gateResult, err := pipeline.Advance(pipeline.Normalize(p.Stage), docs)
	if gateResult != nil {
		if perr := s.persistGateRun(ctx, projectID, userName, *gateResult); perr != nil {
			return nil, perr
		}
	}
	if err != nil {
		var blocked *pipeline.BlockedError
		if stderrors.As(err, &blocked) {
			return nil, domainError(http.StatusConflict, "STAGE_BLOCKED", "Gate checks must pass before leaving sample review", map[string]any{
				"stage":    string(blocked.From),
				"gate":     blocked.Gate,
				"findings": blocked.Findings,
			})
		}
		return nil, domainError(http.StatusConflict, "STAGE_FINAL", err.Error(), nil)
	}

	if err := s.store.UpdateProjectStage(ctx, projectID, string(next)); err != nil {
		return nil, err
	}
	p.Stage = string(next)
	if buyer, berr := s.store.GetBuyer(ctx, p.BuyerID); berr == nil {
		s.indexProject(p, buyer.Company)
	}

	payload := map[string]any{
		"projectId": projectID,
		"stage":     string(next),
	}
	if gateResult != nil {
		payload["gate"] = gateResult
	}
	return payload, nil
}

// ----- reconciliation -----

// reconcileRoles maps reconciliation roles onto document keys. The PI role
// prefers the final PI and falls back to the sample PI early in a deal.
func reconcileValues(docs []tradedoc.Document) map[reconcile.Role]reconcile.DocumentValues {
	values := make(map[reconcile.Role]reconcile.DocumentValues)

	pi := tradedoc.Find(docs, tradedoc.KeyFinalPI)
	if pi == nil {
		pi = tradedoc.Find(docs, tradedoc.KeySamplePI)
	}
	if pi != nil {
		values[reconcile.RolePI] = reconcile.Extract(reconcile.RolePI, pi.Fields)
	}
	if contract := tradedoc.Find(docs, tradedoc.KeyContract); contract != nil {
		values[reconcile.RoleContract] = reconcile.Extract(reconcile.RoleContract, contract.Fields)
	}
	if catalog := tradedoc.Find(docs, tradedoc.KeyCatalog); catalog != nil {
		values[reconcile.RoleCatalog] = reconcile.Extract(reconcile.RoleCatalog, catalog.Fields)
	}
	return values
}

func (s *Service) ReconcileProject(ctx context.Context, projectID string) (map[string]any, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	docs, err := s.GetDocumentSet(ctx, projectID)
	if err != nil {
		return nil, err
	}

	values := reconcileValues(docs)
	warnings := reconcile.Validate(values)
	summary := reconcile.Summarize(warnings)

	if warnings == nil {
		warnings = []reconcile.Warning{}
	}
	return map[string]any{
		"projectId": projectID,
		"warnings":  warnings,
		"summary":   summary,
	}, nil
}

// UnifyField copies one trade term from a source document role onto every
// other role that carries it, then re-validates.
func (s *Service) UnifyField(ctx context.Context, projectID, field, sourceRole, userName string) (map[string]any, error) {
	role := reconcile.Role(strings.TrimSpace(sourceRole))
	if role != reconcile.RolePI && role != reconcile.RoleContract && role != reconcile.RoleCatalog {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown source role", map[string]any{"sourceRole": sourceRole})
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	docs, err := s.GetDocumentSet(ctx, projectID)
	if err != nil {
		return nil, err
	}

	values := reconcileValues(docs)
	source, ok := values[role]
	if !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "source document not present", map[string]any{"sourceRole": sourceRole})
	}

	value, err := scalarFieldValue(source, field)
	if err != nil {
		return nil, err
	}

	// Write the source value through to every stored document that
	// participates in reconciliation.
	for _, key := range []tradedoc.Key{tradedoc.KeySamplePI, tradedoc.KeyFinalPI, tradedoc.KeyContract, tradedoc.KeyCatalog} {
		doc := tradedoc.Find(docs, key)
		if doc == nil {
			continue
		}
		if !applyScalarField(&doc.Fields, field, value) {
			continue
		}
		if _, err := s.SaveDocument(ctx, projectID, string(key), doc.Fields, userName, fmt.Sprintf("Unify %s from %s", field, role)); err != nil {
			return nil, err
		}
	}

	return s.ReconcileProject(ctx, projectID)
}

func scalarFieldValue(source reconcile.DocumentValues, field string) (string, error) {
	switch field {
	case "currency":
		return source.Currency, nil
	case "incoterms":
		return source.Incoterms, nil
	case "paymentTerms":
		return source.PaymentTerms, nil
	case "leadTime":
		return source.LeadTime, nil
	case "moq":
		return fmt.Sprintf("%d", source.MOQ), nil
	default:
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "field is not unifiable", map[string]any{"field": field})
	}
}

func applyScalarField(fields *tradedoc.Fields, field, value string) bool {
	switch field {
	case "currency":
		if fields.Currency == value {
			return false
		}
		fields.Currency = value
	case "incoterms":
		if fields.Incoterms == value {
			return false
		}
		fields.Incoterms = value
	case "paymentTerms":
		if fields.PaymentTerms == value {
			return false
		}
		fields.PaymentTerms = value
	case "leadTime":
		if fields.LeadTime == value {
			return false
		}
		fields.LeadTime = value
	case "moq":
		moq := 0
		fmt.Sscanf(value, "%d", &moq)
		if fields.MOQ == moq {
			return false
		}
		fields.MOQ = moq
	default:
		return false
	}
	return true
}

// ----- search -----

func (s *Service) Search(ctx context.Context, text, filterType, country, stage string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:          text,
		FilterType:    search.ResultType(filterType),
		FilterCountry: country,
		FilterStage:   stage,
		Limit:         limit,
		Offset:        offset,
	}), nil
}

// ----- export -----

func (s *Service) ExportDocument(ctx context.Context, projectID, docKey, format string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export service not configured", nil)
	}
	key := tradedoc.NormalizeKey(docKey)
	if key == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown document key", map[string]any{"docKey": docKey})
	}
	f := export.Format(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = export.FormatPDF
	}
	if f != export.FormatPDF && f != export.FormatDOCX {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or docx", map[string]any{"format": format})
	}
	return s.exporter.Export(ctx, export.Request{ProjectID: projectID, DocKey: string(key), Format: f})
}

// ----- attachments -----

func (s *Service) UploadAttachment(ctx context.Context, projectID, filename, contentType string, size int64, r io.Reader, userName string) (map[string]any, error) {
	if s.files == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Attachment storage not configured", nil)
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	key, err := s.files.Upload(ctx, projectID, filename, r, size, contentType)
	if err != nil {
		return nil, err
	}

	item := store.Attachment{
		ID:          util.NewID("att"),
		ProjectID:   projectID,
		ObjectKey:   key,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		UploadedBy:  userName,
	}
	if err := s.store.InsertAttachment(ctx, item); err != nil {
		return nil, err
	}
	return attachmentPayload(item), nil
}

func (s *Service) ListAttachments(ctx context.Context, projectID string) ([]map[string]any, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	items, err := s.store.ListAttachments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, attachmentPayload(item))
	}
	return payloads, nil
}

func (s *Service) AttachmentURL(ctx context.Context, attachmentID string) (map[string]any, error) {
	if s.files == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Attachment storage not configured", nil)
	}
	item, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	url, err := s.files.PresignedGetURL(ctx, item.ObjectKey, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":       item.ID,
		"filename": item.Filename,
		"url":      url,
	}, nil
}

func attachmentPayload(item store.Attachment) map[string]any {
	return map[string]any{
		"id":          item.ID,
		"projectId":   item.ProjectID,
		"filename":    item.Filename,
		"contentType": item.ContentType,
		"size":        item.Size,
		"uploadedBy":  item.UploadedBy,
		"createdAt":   item.CreatedAt,
	}
}

// ----- assistant features -----

func (s *Service) DraftOutreach(ctx context.Context, buyerID, productSummary string) (map[string]any, error) {
	if s.llm == nil || !s.llm.IsConfigured() {
		return nil, domainError(http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "Assistant features not configured", nil)
	}
	buyer, err := s.store.GetBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	draft, err := s.llm.DraftOutreachEmail(ctx, buyer.Company, buyer.Country, productSummary)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"buyerId": buyer.ID,
		"to":      buyer.Email,
		"subject": draft.Subject,
		"body":    draft.Body,
	}, nil
}

func (s *Service) SendOutreach(ctx context.Context, buyerID, subject, body string) (map[string]any, error) {
	if !s.SMTPConfigured() {
		return nil, domainError(http.StatusServiceUnavailable, "EMAIL_UNAVAILABLE", "Email sending not configured", nil)
	}
	buyer, err := s.store.GetBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(buyer.Email) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "buyer has no email address", nil)
	}
	if err := s.email.SendBuyerOutreach(buyer.Email, subject, body); err != nil {
		return nil, err
	}
	return map[string]any{"sent": true, "to": buyer.Email}, nil
}

const assistantSystemPrompt = "You are a trade assistant for a Korean cosmetics exporter. " +
	"Answer questions about export documents, Incoterms, payment terms, and K-beauty regulations concisely."

func (s *Service) AssistantChat(ctx context.Context, message string) (string, error) {
	if s.llm == nil || !s.llm.IsConfigured() {
		return "", domainError(http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "Assistant features not configured", nil)
	}
	if strings.TrimSpace(message) == "" {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message is required", nil)
	}
	return s.llm.Chat(ctx, assistantSystemPrompt, message)
}

func (s *Service) ExtractDocumentFields(ctx context.Context, text string) (tradedoc.Fields, error) {
	if s.llm == nil || !s.llm.IsConfigured() {
		return tradedoc.Fields{}, domainError(http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "Assistant features not configured", nil)
	}
	if strings.TrimSpace(text) == "" {
		return tradedoc.Fields{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	return s.llm.ExtractFields(ctx, text)
}

func (s *Service) RegulatoryChecklist(ctx context.Context, country string) ([]tradedoc.RuleItem, error) {
	if s.llm == nil || !s.llm.IsConfigured() {
		return nil, domainError(http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "Assistant features not configured", nil)
	}
	if strings.TrimSpace(country) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "country is required", nil)
	}
	return s.llm.RegulatoryChecklist(ctx, country)
}

// notFound reports whether an error is the store's no-rows sentinel.
func notFound(err error) bool {
	return stderrors.Is(err, sql.ErrNoRows)
}

// ExportDataStore adapts the service's store to the export renderer.
func (s *Service) ExportDataStore() export.DataStore {
	return exportAdapter{s: s}
}

type exportAdapter struct {
	s *Service
}

func (a exportAdapter) GetProject(ctx context.Context, id string) (export.ProjectInfo, error) {
	p, err := a.s.store.GetProject(ctx, id)
	if err != nil {
		return export.ProjectInfo{}, err
	}
	return export.ProjectInfo{ID: p.ID, Name: p.Name, BuyerID: p.BuyerID, Currency: p.Currency}, nil
}

func (a exportAdapter) GetBuyer(ctx context.Context, id string) (export.BuyerInfo, error) {
	b, err := a.s.store.GetBuyer(ctx, id)
	if err != nil {
		return export.BuyerInfo{}, err
	}
	return export.BuyerInfo{ID: b.ID, Company: b.Company, Country: b.Country}, nil
}

func (a exportAdapter) GetTradeDocument(ctx context.Context, projectID, docKey string) (tradedoc.Document, error) {
	row, err := a.s.store.GetProjectDocument(ctx, projectID, docKey)
	if err != nil {
		return tradedoc.Document{}, err
	}
	return decodeStoredDocument(row)
}

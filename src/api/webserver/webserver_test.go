package webserver

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"
	"github.com/stake-plus/landvote/src/api/config"
	"github.com/stake-plus/landvote/src/api/data"
	"github.com/stake-plus/landvote/src/governance"
	"github.com/stake-plus/landvote/src/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const downtown = "Downtown District"

type memNonces struct {
	mu sync.Mutex
	m  map[string]string
}

func (n *memNonces) Set(_ context.Context, addr, nonce string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.m[addr] = nonce
	return nil
}

func (n *memNonces) Take(_ context.Context, addr string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nonce, ok := n.m[addr]
	if !ok {
		return "", errors.New("no challenge")
	}
	delete(n.m, addr)
	return nonce, nil
}

type testRegistry struct{ *governance.StoreRegistry }

func (r testRegistry) UpsertLandowner(_ context.Context, l data.Landowner) error {
	role := governance.ParseRole(l.Role)
	if role == governance.RoleUnknown {
		return &governance.ValidationError{Kind: governance.ErrInvalidOwnershipRecord, Field: "role", Reason: "unknown role"}
	}
	r.SetRole(l.Address, role)
	return nil
}

type testServer struct {
	engine   *gin.Engine
	ctl      *governance.Controller
	clock    *governance.ManualClock
	registry testRegistry
	hub      *Hub
	secret   []byte
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithProposals(t, governance.NewMemoryProposals())
}

func newTestServerWithProposals(t *testing.T, proposals governance.ProposalStore) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := governance.NewManualClock(epoch)
	parcels := governance.NewMemoryParcels(clock)
	registry := testRegistry{governance.NewStoreRegistry(parcels)}
	hub := NewHub(nil)
	recorder := metrics.NewRecorder()
	ctl := governance.NewController(governance.Deps{
		Proposals:  proposals,
		Parcels:    parcels,
		Ledger:     governance.NewMemoryLedger(),
		Registry:   registry,
		Clock:      clock,
		Catalog:    governance.DefaultCatalog(),
		Publishers: []governance.Publisher{hub, recorder},
	})
	cfg := config.Config{JWTSecret: "test-secret", RateLimit: 1000, AllowedOrigins: []string{"http://localhost:3000"}}
	engine := New(cfg, Deps{
		Controller: ctl,
		Registry:   registry,
		Nonces:     &memNonces{m: make(map[string]string)},
		Hub:        hub,
		Rejections: recorder,
		Metrics:    recorder.Handler(),
	})
	t.Cleanup(hub.Close)

	s := &testServer{engine: engine, ctl: ctl, clock: clock, registry: registry, hub: hub, secret: []byte(cfg.JWTSecret)}
	registry.SetRole("prop", governance.RoleProposer)
	registry.SetRole("val", governance.RoleValidator)
	for i, owner := range []string{"alice", "bob"} {
		registry.SetRole(owner, governance.RoleLandowner)
		_, err := ctl.IngestParcel(context.Background(), governance.Parcel{
			ID: "P" + string(rune('1'+i)), Owner: owner, Region: downtown, OwnerVerified: true, Active: true,
		})
		require.NoError(t, err)
	}
	registry.SetRole("carol", governance.RoleLandowner)
	return s
}

func (s *testServer) do(t *testing.T, method, path, identity string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		tok, err := issueJWT(identity, s.secret)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func draftBody(deadline time.Time) map[string]interface{} {
	return map[string]interface{}{
		"title":       "Community garden <script>alert(1)</script>",
		"description": "Convert the vacant lot. <b>Soon</b>",
		"category":    "Green Spaces",
		"region":      downtown,
		"deadline":    deadline,
	}
}

// racedProposals loses every status change, as if another replica moved the
// proposal first.
type racedProposals struct{ *governance.MemoryProposals }

func (r racedProposals) Transition(_ context.Context, id string, from, to governance.Status, _ func(*governance.Proposal)) (governance.Proposal, error) {
	return governance.Proposal{}, &governance.TransitionError{ID: id, From: from, To: to, Detail: "status changed concurrently"}
}

func TestCreateWithSubmit_KeepsDraftWhenSubmitFails(t *testing.T) {
	s := newTestServerWithProposals(t, racedProposals{governance.NewMemoryProposals()})

	body := draftBody(epoch.Add(48 * time.Hour))
	body["submit"] = true
	rec := s.do(t, http.MethodPost, "/v1/proposals", "prop", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got struct {
		governance.Proposal
		SubmitError map[string]interface{} `json:"submitError"`
	}
	decode(t, rec, &got)
	assert.Equal(t, governance.StatusDraft, got.Status)
	require.NotNil(t, got.SubmitError)
	assert.Equal(t, "IllegalTransition", got.SubmitError["reason"])
	assert.EqualValues(t, http.StatusConflict, got.SubmitError["status"])

	rec = s.do(t, http.MethodGet, "/v1/proposals/"+got.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored governance.Proposal
	decode(t, rec, &stored)
	assert.Equal(t, governance.StatusDraft, stored.Status)
}

func TestCreate_TitleKeepsPlainEntities(t *testing.T) {
	s := newTestServer(t)

	body := draftBody(epoch.Add(48 * time.Hour))
	body["title"] = "Parks & Rec <b>upgrade</b> \"phase 2\""
	rec := s.do(t, http.MethodPost, "/v1/proposals", "prop", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p governance.Proposal
	decode(t, rec, &p)
	assert.Equal(t, `Parks & Rec upgrade "phase 2"`, p.Title)
	assert.NotContains(t, rec.Body.String(), "submitError")

	body["title"] = "&lt;b&gt;Bold&lt;/b&gt; Bridge"
	rec = s.do(t, http.MethodPost, "/v1/proposals", "prop", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &p)
	assert.Equal(t, "Bold Bridge", p.Title, "escaped markup does not come back as tags")
}

func TestProposalLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	body := draftBody(epoch.Add(48 * time.Hour))
	body["submit"] = true
	rec := s.do(t, http.MethodPost, "/v1/proposals", "prop", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p governance.Proposal
	decode(t, rec, &p)
	assert.Equal(t, governance.StatusUnderReview, p.Status)
	assert.Equal(t, "Community garden", p.Title, "markup stripped")

	rec = s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/approve", "val", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &p)
	assert.Equal(t, governance.StatusActive, p.Status)

	rec = s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/votes", "alice", gin.H{"choice": "for"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var v governance.Vote
	decode(t, rec, &v)
	assert.Equal(t, "P1", v.ParcelID)

	rec = s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/votes", "alice", gin.H{"choice": "against"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	var errBody map[string]interface{}
	decode(t, rec, &errBody)
	assert.Equal(t, "AlreadyVoted", errBody["reason"])

	rec = s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/votes", "carol", gin.H{"choice": "for"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	decode(t, rec, &errBody)
	assert.Equal(t, "NoQualifyingParcel", errBody["reason"])

	rec = s.do(t, http.MethodGet, "/v1/proposals/"+p.ID+"/votes/mine", "alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/proposals/"+p.ID+"/votes/mine", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/proposals/"+p.ID+"/eligibility", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var el governance.Eligibility
	decode(t, rec, &el)
	assert.True(t, el.Eligible)

	rec = s.do(t, http.MethodGet, "/v1/proposals/"+p.ID+"/tally", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap governance.TallySnapshot
	decode(t, rec, &snap)
	assert.Equal(t, 1, snap.For)
	assert.Equal(t, 2, snap.EligibleVoters)
	assert.Equal(t, governance.OutcomePending, snap.Outcome)

	rec = s.do(t, http.MethodGet, "/v1/proposals/"+p.ID+"/parcels", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pm struct {
		Parcels []governance.MapParcel `json:"parcels"`
	}
	decode(t, rec, &pm)
	require.Len(t, pm.Parcels, 2)
	assert.Equal(t, governance.ParcelVoted, pm.Parcels[0].State)
	assert.Equal(t, governance.ParcelEligible, pm.Parcels[1].State)

	rec = s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/advance", "val", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "voting still open")

	s.clock.Advance(48 * time.Hour)
	rec = s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/advance", "val", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &p)
	assert.Equal(t, governance.StatusPassed, p.Status)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `landvote_votes_cast_total{choice="for"} 1`)
	assert.Contains(t, rec.Body.String(), `landvote_vote_rejections_total{reason="AlreadyVoted"} 1`)
	assert.Contains(t, rec.Body.String(), `landvote_transitions_total{status="passed"} 1`)
}

func TestCreateProposal_MissingRegionLeavesStoreEmpty(t *testing.T) {
	s := newTestServer(t)
	body := draftBody(epoch.Add(time.Hour))
	delete(body, "region")

	rec := s.do(t, http.MethodPost, "/v1/proposals", "prop", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody map[string]interface{}
	decode(t, rec, &errBody)
	assert.Equal(t, "region", errBody["field"])

	rec = s.do(t, http.MethodGet, "/v1/proposals", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Proposals []governance.Proposal `json:"proposals"`
	}
	decode(t, rec, &list)
	assert.Empty(t, list.Proposals)
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/proposals", "alice", draftBody(epoch.Add(time.Hour)))
	assert.Equal(t, http.StatusForbidden, rec.Code, "landowners cannot propose")

	rec = s.do(t, http.MethodPost, "/v1/proposals", "prop", draftBody(epoch.Add(time.Hour)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var p governance.Proposal
	decode(t, rec, &p)

	rec = s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/approve", "prop", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/proposals/"+p.ID+"/approve", "val", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "draft cannot be approved")

	rec = s.do(t, http.MethodPost, "/v1/proposals", "", draftBody(epoch.Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodDelete, "/v1/proposals/"+p.ID, "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodDelete, "/v1/proposals/"+p.ID, "prop", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/proposals/"+p.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProposals_RejectsUnknownStatus(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/v1/proposals?status=pending", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogAndParcels(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/v1/catalog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cat governance.Catalog
	decode(t, rec, &cat)
	assert.Contains(t, cat.Regions, downtown)

	rec = s.do(t, http.MethodGet, "/v1/parcels/mine", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var owned struct {
		Parcels []governance.Parcel `json:"parcels"`
	}
	decode(t, rec, &owned)
	require.Len(t, owned.Parcels, 1)
	assert.Equal(t, "P2", owned.Parcels[0].ID)

	rec = s.do(t, http.MethodGet, "/v1/regions/Downtown%20District/parcels", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &owned)
	assert.Len(t, owned.Parcels, 2)
}

func TestAdminIngest(t *testing.T) {
	s := newTestServer(t)
	batch := gin.H{
		"landowners": []gin.H{{"address": "dave", "role": "landowner", "verified": true}},
		"parcels": []gin.H{{
			"id": "P9", "owner": "dave", "region": downtown, "ownerVerified": true, "active": true,
		}},
	}

	rec := s.do(t, http.MethodPost, "/v1/admin/parcels", "alice", batch)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/admin/parcels", "val", batch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	role, err := s.registry.ResolveRole(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, governance.RoleLandowner, role)
	pc, err := s.ctl.Parcel(context.Background(), "P9")
	require.NoError(t, err)
	assert.True(t, pc.Eligible())

	bad := gin.H{"parcels": []gin.H{{"id": "P10", "owner": "", "region": downtown}}}
	rec = s.do(t, http.MethodPost, "/v1/admin/parcels", "val", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody map[string]interface{}
	decode(t, rec, &errBody)
	assert.Equal(t, "owner", errBody["field"])
	assert.EqualValues(t, 0, errBody["parcel"])
}

func encodeSS58(prefix byte, pub [32]byte) string {
	body := append([]byte{prefix}, pub[:]...)
	sum := ss58Checksum(body)
	return base58.Encode(append(body, sum[:2]...))
}

func TestAuthChallengeVerify(t *testing.T) {
	s := newTestServer(t)
	sk, pk, err := schnorrkel.GenerateKeypair()
	require.NoError(t, err)
	addr := encodeSS58(42, pk.Encode())

	challenge := func() string {
		rec := s.do(t, http.MethodPost, "/v1/auth/challenge", "", gin.H{"address": addr})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct{ Nonce string }
		decode(t, rec, &resp)
		return resp.Nonce
	}
	sign := func(msg string) string {
		sig, err := sk.Sign(schnorrkel.NewSigningContext([]byte("substrate"), []byte(msg)))
		require.NoError(t, err)
		raw := sig.Encode()
		return "0x" + hex.EncodeToString(raw[:])
	}

	nonce := challenge()
	rec := s.do(t, http.MethodPost, "/v1/auth/verify", "", gin.H{"address": addr, "signature": sign("not the nonce")})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/auth/verify", "", gin.H{"address": addr, "signature": sign(nonce)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a failed attempt consumes the challenge")

	nonce = challenge()
	rec = s.do(t, http.MethodPost, "/v1/auth/verify", "", gin.H{"address": addr, "signature": sign(nonce)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct{ Token string }
	decode(t, rec, &resp)

	req := httptest.NewRequest(http.MethodGet, "/v1/parcels/mine", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	out := httptest.NewRecorder()
	s.engine.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)

	rec = s.do(t, http.MethodPost, "/v1/auth/challenge", "", gin.H{"address": "not-an-address"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecodeSS58(t *testing.T) {
	var pub [32]byte
	for i := range pub {
		pub[i] = byte(i)
	}
	addr := encodeSS58(0, pub)
	key, err := decodeSS58(addr)
	require.NoError(t, err)
	assert.Equal(t, pub[:], key)

	raw, err := base58.Decode(addr)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	_, err = decodeSS58(base58.Encode(raw))
	assert.ErrorContains(t, err, "checksum")

	key, err = decodeSS58("0x" + hex.EncodeToString(pub[:]))
	require.NoError(t, err)
	assert.Equal(t, pub[:], key)
	_, err = decodeSS58("0x1234")
	assert.Error(t, err)
}

func TestJWTMiddleware_RejectsForeignTokens(t *testing.T) {
	s := newTestServer(t)
	tok, err := issueJWT("alice", []byte("other-secret"))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/parcels/mine", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	now := epoch
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))

	assert.True(t, NewRateLimiter(0, time.Minute).Allow("x"), "disabled")
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		err    error
		status int
		reason string
	}{
		{&governance.ValidationError{Kind: governance.ErrInvalidProposal, Field: "title", Reason: "required"}, http.StatusBadRequest, ""},
		{&governance.IneligibleError{Reason: governance.ReasonVotingClosed}, http.StatusConflict, "VotingClosed"},
		{&governance.TransitionError{ID: "x", From: governance.StatusPassed, To: governance.StatusActive}, http.StatusConflict, "IllegalTransition"},
		{governance.ErrForbidden, http.StatusForbidden, ""},
		{governance.ErrNotFound, http.StatusNotFound, ""},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		status, body := errorResponse(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		if tt.reason != "" {
			assert.Equal(t, tt.reason, body["reason"])
		}
	}
	_, body := errorResponse(errors.New("db password leaked"))
	assert.False(t, strings.Contains(body["err"].(string), "password"))
}

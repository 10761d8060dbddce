package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"soundvault/internal/entitlement"
	"soundvault/internal/features"
	"soundvault/internal/identity"
	"soundvault/internal/objectstore"
	"soundvault/internal/payment"
	principalmodels "soundvault/internal/principal/models"
	principalservice "soundvault/internal/principal/service"
	principalstore "soundvault/internal/principal/store"
	purchaseservice "soundvault/internal/purchase/service"
	purchasestore "soundvault/internal/purchase/store"
	streamservice "soundvault/internal/stream/service"
	streamstore "soundvault/internal/stream/store"
	trackservice "soundvault/internal/track/service"
	trackstore "soundvault/internal/track/store"
)

var apiSecret = []byte("api-test-secret")

// harness wires the full stack over memory stores, the way main does over
// the real ones.
type harness struct {
	server     *httptest.Server
	principals *principalstore.InMemory
	tracks     *trackstore.InMemory
	purchases  *purchasestore.InMemory
	processor  *payment.Scripted
	objects    *objectstore.Memory
}

func newHarness(overlay map[string]any) *harness {
	h := &harness{
		principals: principalstore.NewInMemory(),
		tracks:     trackstore.NewInMemory(),
		purchases:  purchasestore.NewInMemory(),
		processor:  payment.NewScripted(),
		objects:    objectstore.NewMemory(),
	}

	flags := features.FromValues(overlay)
	verifier, err := identity.NewHS256Verifier("test", apiSecret)
	if err != nil {
		panic(err)
	}
	resolver := identity.NewResolver(verifier, h.principals)
	validator := entitlement.NewValidator(flags, h.purchases)

	srv := New(
		resolver,
		principalservice.New(h.principals),
		trackservice.New(h.tracks, h.principals, h.purchases, h.objects, validator, flags),
		purchaseservice.New(h.purchases, h.tracks, h.processor, validator, flags, h.objects),
		streamservice.New(streamstore.NewInMemory(), h.tracks, h.principals, validator, h.objects),
		flags,
	)
	h.server = httptest.NewServer(srv.Router())
	return h
}

func (h *harness) close() {
	h.server.Close()
}

func (h *harness) token(subject string) string {
	raw, err := identity.SignHS256(apiSecret, subject, subject+"@example.com", "Test User", time.Minute)
	if err != nil {
		panic(err)
	}
	return raw
}

// register creates a principal through the API and returns it with its token.
func (h *harness) register(subject, email, role string) (*principalmodels.Principal, string) {
	token := h.token(subject)
	status, body := h.do(http.MethodPost, "/auth/register", token, map[string]any{
		"email":        email,
		"display_name": "Test User",
		"role":         role,
	})
	if status != http.StatusCreated {
		panic(fmt.Sprintf("register %s: %d %s", subject, status, body))
	}
	p, err := h.principals.FindBySubject(context.Background(), subject)
	if err != nil {
		panic(err)
	}
	return p, token
}

func (h *harness) do(method, path, token string, payload any) (int, []byte) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.server.URL+path, body)
	if err != nil {
		panic(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}
	return resp.StatusCode, raw
}

type APISuite struct {
	suite.Suite
	h *harness
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.h = newHarness(nil)
}

func (s *APISuite) TearDownTest() {
	s.h.close()
}

func (s *APISuite) decode(raw []byte, dst any) {
	s.Require().NoError(json.Unmarshal(raw, dst))
}

func (s *APISuite) createTrack(token string, price int64, public bool) uuid.UUID {
	status, body := s.h.do(http.MethodPost, "/tracks", token, map[string]any{
		"title":       "Night Drive",
		"price_cents": price,
		"duration":    200,
		"is_public":   public,
	})
	s.Require().Equal(http.StatusCreated, status, string(body))
	var track struct {
		ID uuid.UUID `json:"id"`
	}
	s.decode(body, &track)
	return track.ID
}

func (s *APISuite) attachAudio(trackID uuid.UUID) {
	t, err := s.h.tracks.FindByID(context.Background(), trackID)
	s.Require().NoError(err)
	t.AudioKey = "audio/" + trackID.String() + "/master.mp3"
	s.Require().NoError(s.h.tracks.Update(context.Background(), t))
}

func (s *APISuite) TestHealth() {
	status, _ := s.h.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, status)
}

func (s *APISuite) TestMeUnauthenticated() {
	status, body := s.h.do(http.MethodGet, "/auth/me", "", nil)
	s.Equal(http.StatusUnauthorized, status)

	var envelope errorBody
	s.decode(body, &envelope)
	s.Equal("unauthorized", envelope.Error)
}

func (s *APISuite) TestRegisterAndMe() {
	p, token := s.h.register("sub-reg-0001", "reg@example.com", "listener")

	status, body := s.h.do(http.MethodGet, "/auth/me", token, nil)
	s.Require().Equal(http.StatusOK, status)

	var me struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
		Role  string    `json:"role"`
	}
	s.decode(body, &me)
	s.Equal(p.ID, me.ID)
	s.Equal("reg@example.com", me.Email)
	s.Equal("listener", me.Role)

	// Registering the same subject again conflicts.
	status, _ = s.h.do(http.MethodPost, "/auth/register", token, map[string]any{
		"email":        "again@example.com",
		"display_name": "Test User",
		"role":         "listener",
	})
	s.Equal(http.StatusConflict, status)
}

func (s *APISuite) TestRegisterWithoutCredential() {
	status, _ := s.h.do(http.MethodPost, "/auth/register", "", map[string]any{
		"email":        "nobody@example.com",
		"display_name": "Nobody",
		"role":         "listener",
	})
	s.Equal(http.StatusUnauthorized, status)
}

func (s *APISuite) TestUpdateMe() {
	_, token := s.h.register("sub-upd-0001", "upd@example.com", "listener")

	status, body := s.h.do(http.MethodPut, "/auth/me", token, map[string]any{
		"display_name": "Renamed",
	})
	s.Require().Equal(http.StatusOK, status)

	var me struct {
		DisplayName string `json:"display_name"`
	}
	s.decode(body, &me)
	s.Equal("Renamed", me.DisplayName)
}

func (s *APISuite) TestListenerCannotCreateTrack() {
	_, token := s.h.register("sub-lst-0001", "lst@example.com", "listener")

	status, body := s.h.do(http.MethodPost, "/tracks", token, map[string]any{
		"title":       "Nope",
		"price_cents": 100,
		"duration":    60,
	})
	s.Equal(http.StatusForbidden, status)

	var envelope errorBody
	s.decode(body, &envelope)
	s.Equal("forbidden", envelope.Error)
}

func (s *APISuite) TestTrackCRUD() {
	_, artist := s.h.register("sub-art-0001", "art@example.com", "artist")
	trackID := s.createTrack(artist, 300, true)

	status, _ := s.h.do(http.MethodGet, "/tracks/"+trackID.String(), "", nil)
	s.Equal(http.StatusOK, status)

	status, body := s.h.do(http.MethodGet, "/tracks", "", nil)
	s.Require().Equal(http.StatusOK, status)
	var list []json.RawMessage
	s.decode(body, &list)
	s.Len(list, 1)

	status, _ = s.h.do(http.MethodPut, "/tracks/"+trackID.String(), artist, map[string]any{
		"title": "Renamed",
	})
	s.Equal(http.StatusOK, status)

	// A different artist cannot touch it.
	_, rival := s.h.register("sub-art-0002", "rival@example.com", "artist")
	status, _ = s.h.do(http.MethodPut, "/tracks/"+trackID.String(), rival, map[string]any{
		"title": "Stolen",
	})
	s.Equal(http.StatusForbidden, status)

	status, _ = s.h.do(http.MethodDelete, "/tracks/"+trackID.String(), artist, nil)
	s.Equal(http.StatusNoContent, status)

	status, _ = s.h.do(http.MethodGet, "/tracks/"+trackID.String(), "", nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *APISuite) TestHiddenTrackVisibility() {
	_, artist := s.h.register("sub-art-0003", "hidden@example.com", "artist")
	trackID := s.createTrack(artist, 300, false)

	// Anonymous and other principals get 404, the owner sees it.
	status, _ := s.h.do(http.MethodGet, "/tracks/"+trackID.String(), "", nil)
	s.Equal(http.StatusNotFound, status)

	_, listener := s.h.register("sub-lst-0002", "peek@example.com", "listener")
	status, _ = s.h.do(http.MethodGet, "/tracks/"+trackID.String(), listener, nil)
	s.Equal(http.StatusNotFound, status)

	status, _ = s.h.do(http.MethodGet, "/tracks/"+trackID.String(), artist, nil)
	s.Equal(http.StatusOK, status)
}

func (s *APISuite) TestPurchaseFlow() {
	_, artist := s.h.register("sub-art-0004", "seller@example.com", "artist")
	_, buyer := s.h.register("sub-buy-0001", "buyer@example.com", "listener")
	trackID := s.createTrack(artist, 300, false)
	s.attachAudio(trackID)

	// Wrong amount is rejected up front.
	status, _ := s.h.do(http.MethodPost, "/purchases", buyer, map[string]any{
		"track_id":       trackID,
		"amount_cents":   250,
		"payment_method": "credit_card",
		"payment_token":  "tok_cheap",
	})
	s.Equal(http.StatusBadRequest, status)

	status, body := s.h.do(http.MethodPost, "/purchases", buyer, map[string]any{
		"track_id":       trackID,
		"amount_cents":   300,
		"payment_method": "credit_card",
		"payment_token":  "tok_ok",
	})
	s.Require().Equal(http.StatusCreated, status, string(body))

	var rec struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	s.decode(body, &rec)
	s.Equal("completed", rec.Status)

	// Repeat purchase conflicts.
	status, _ = s.h.do(http.MethodPost, "/purchases", buyer, map[string]any{
		"track_id":       trackID,
		"amount_cents":   300,
		"payment_method": "credit_card",
		"payment_token":  "tok_again",
	})
	s.Equal(http.StatusConflict, status)

	// The record shows up in the buyer's list but not in a stranger's, and
	// fetch-by-id is payer-only.
	status, body = s.h.do(http.MethodGet, "/purchases", buyer, nil)
	s.Require().Equal(http.StatusOK, status)
	var list []json.RawMessage
	s.decode(body, &list)
	s.Len(list, 1)

	status, _ = s.h.do(http.MethodGet, "/purchases/"+rec.ID.String(), buyer, nil)
	s.Equal(http.StatusOK, status)

	_, stranger := s.h.register("sub-str-0001", "stranger@example.com", "listener")
	status, _ = s.h.do(http.MethodGet, "/purchases/"+rec.ID.String(), stranger, nil)
	s.Equal(http.StatusForbidden, status)

	// The buyer can pull a download URL; the stranger cannot.
	status, body = s.h.do(http.MethodGet, "/purchases/track/"+trackID.String()+"/download", buyer, nil)
	s.Require().Equal(http.StatusOK, status)
	var grant struct {
		DownloadURL string `json:"download_url"`
	}
	s.decode(body, &grant)
	s.NotEmpty(grant.DownloadURL)

	status, _ = s.h.do(http.MethodGet, "/purchases/track/"+trackID.String()+"/download", stranger, nil)
	s.Equal(http.StatusForbidden, status)
}

func (s *APISuite) TestPaymentDisabled() {
	s.h.close()
	s.h = newHarness(map[string]any{
		"payment": map[string]any{
			"enabled":             false,
			"coming_soon_message": "Checkout opens soon.",
		},
	})

	_, artist := s.h.register("sub-art-0005", "free@example.com", "artist")
	_, buyer := s.h.register("sub-buy-0002", "eager@example.com", "listener")
	trackID := s.createTrack(artist, 300, false)

	status, body := s.h.do(http.MethodPost, "/purchases", buyer, map[string]any{
		"track_id":       trackID,
		"amount_cents":   300,
		"payment_method": "credit_card",
		"payment_token":  "tok_blocked",
	})
	s.Equal(http.StatusServiceUnavailable, status)

	var envelope errorBody
	s.decode(body, &envelope)
	s.Equal("Checkout opens soon.", envelope.Message)
}

func (s *APISuite) TestDeclineMapsToBadGateway() {
	_, artist := s.h.register("sub-art-0006", "dec@example.com", "artist")
	_, buyer := s.h.register("sub-buy-0003", "broke@example.com", "listener")
	trackID := s.createTrack(artist, 300, true)
	s.h.processor.Decline("tok_broke", "insufficient funds")

	status, _ := s.h.do(http.MethodPost, "/purchases", buyer, map[string]any{
		"track_id":       trackID,
		"amount_cents":   300,
		"payment_method": "credit_card",
		"payment_token":  "tok_broke",
	})
	s.Equal(http.StatusBadGateway, status)
}

func (s *APISuite) TestStreamAndPlay() {
	_, artist := s.h.register("sub-art-0007", "str@example.com", "artist")
	trackID := s.createTrack(artist, 300, true)
	s.attachAudio(trackID)

	// Public tracks stream anonymously.
	status, body := s.h.do(http.MethodPost, "/stream/"+trackID.String(), "", nil)
	s.Require().Equal(http.StatusOK, status, string(body))
	var grant struct {
		StreamURL string `json:"stream_url"`
	}
	s.decode(body, &grant)
	s.NotEmpty(grant.StreamURL)

	status, _ = s.h.do(http.MethodPost, "/stream/"+trackID.String()+"/play", "", map[string]any{
		"duration": 42,
	})
	s.Equal(http.StatusOK, status)

	t, err := s.h.tracks.FindByID(context.Background(), trackID)
	s.Require().NoError(err)
	s.Equal(int64(1), t.PlayCount)

	// A present-but-garbage token is rejected, not downgraded to anonymous.
	status, _ = s.h.do(http.MethodPost, "/stream/"+trackID.String(), "garbage-token", nil)
	s.Equal(http.StatusUnauthorized, status)
}

func (s *APISuite) TestHiddenTrackStreamRequiresEntitlement() {
	_, artist := s.h.register("sub-art-0008", "vault@example.com", "artist")
	_, listener := s.h.register("sub-lst-0003", "denied@example.com", "listener")
	trackID := s.createTrack(artist, 300, false)
	s.attachAudio(trackID)

	status, _ := s.h.do(http.MethodPost, "/stream/"+trackID.String(), "", nil)
	s.Equal(http.StatusUnauthorized, status)

	status, _ = s.h.do(http.MethodPost, "/stream/"+trackID.String(), listener, nil)
	s.Equal(http.StatusForbidden, status)

	status, _ = s.h.do(http.MethodPost, "/stream/"+trackID.String(), artist, nil)
	s.Equal(http.StatusOK, status)
}

func (s *APISuite) TestFeaturesEndpoints() {
	status, body := s.h.do(http.MethodGet, "/features", "", nil)
	s.Require().Equal(http.StatusOK, status)
	var public map[string]any
	s.decode(body, &public)
	s.Contains(public, "payment")
	s.Contains(public, "limits")

	status, body = s.h.do(http.MethodGet, "/features/payment", "", nil)
	s.Require().Equal(http.StatusOK, status)
	var payment map[string]any
	s.decode(body, &payment)
	s.Equal(true, payment["enabled"])

	status, body = s.h.do(http.MethodGet, "/features/status", "", nil)
	s.Require().Equal(http.StatusOK, status)
	var st map[string]any
	s.decode(body, &st)
	s.Equal("paid", st["mode"])
}

func (s *APISuite) TestUploadAudio() {
	_, artist := s.h.register("sub-art-0009", "upl@example.com", "artist")
	trackID := s.createTrack(artist, 300, true)

	payload := append([]byte{0xFF, 0xFB, 0x90, 0x00}, bytes.Repeat([]byte{0x00}, 64)...)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("file", "master.mp3")
	s.Require().NoError(err)
	_, err = fw.Write(payload)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.h.server.URL+"/tracks/"+trackID.String()+"/upload/audio", &form)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+artist)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	t, err := s.h.tracks.FindByID(context.Background(), trackID)
	s.Require().NoError(err)
	s.NotEmpty(t.AudioKey)
	stored, ok := s.h.objects.Get(t.AudioKey)
	s.Require().True(ok)
	s.Equal(payload, stored)
}

func (s *APISuite) TestMalformedJSONIsBadRequest() {
	_, token := s.h.register("sub-bad-0001", "bad@example.com", "artist")

	req, err := http.NewRequest(http.MethodPost, s.h.server.URL+"/tracks", bytes.NewReader([]byte("{not json")))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

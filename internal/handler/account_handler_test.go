package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kestrelbank/ledger-service/internal/command"
	"github.com/kestrelbank/ledger-service/internal/domain"
	"github.com/kestrelbank/ledger-service/internal/query"
)

// ---- mock implementations ----

type mockAccountCommander struct {
	openFn     func(command.OpenAccountCommand) (*domain.Account, error)
	depositFn  func(command.DepositCommand) error
	withdrawFn func(command.WithdrawCommand) error
	remitFn    func(command.RemitCommand) error
	passwordFn func(command.UpdatePasswordCommand) error
	closeFn    func(command.CloseAccountCommand) error
}

func (m *mockAccountCommander) OpenAccount(_ context.Context, cmd command.OpenAccountCommand) (*domain.Account, error) {
	if m.openFn != nil {
		return m.openFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockAccountCommander) Deposit(_ context.Context, cmd command.DepositCommand) error {
	if m.depositFn != nil {
		return m.depositFn(cmd)
	}
	return fmt.Errorf("not configured")
}
func (m *mockAccountCommander) Withdraw(_ context.Context, cmd command.WithdrawCommand) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(cmd)
	}
	return fmt.Errorf("not configured")
}
func (m *mockAccountCommander) Remit(_ context.Context, cmd command.RemitCommand) error {
	if m.remitFn != nil {
		return m.remitFn(cmd)
	}
	return fmt.Errorf("not configured")
}
func (m *mockAccountCommander) UpdatePassword(_ context.Context, cmd command.UpdatePasswordCommand) error {
	if m.passwordFn != nil {
		return m.passwordFn(cmd)
	}
	return fmt.Errorf("not configured")
}
func (m *mockAccountCommander) CloseAccount(_ context.Context, cmd command.CloseAccountCommand) error {
	if m.closeFn != nil {
		return m.closeFn(cmd)
	}
	return fmt.Errorf("not configured")
}

type mockAccountQuerier struct {
	getFn    func(string) (*query.AccountView, error)
	listFn   func(string) ([]query.AccountView, error)
	eventsFn func(string) ([]domain.Event, error)
}

func (m *mockAccountQuerier) GetAccount(_ context.Context, id string) (*query.AccountView, error) {
	if m.getFn != nil {
		return m.getFn(id)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockAccountQuerier) FindByName(_ context.Context, name string) ([]query.AccountView, error) {
	if m.listFn != nil {
		return m.listFn(name)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockAccountQuerier) ListEvents(_ context.Context, id string) ([]domain.Event, error) {
	if m.eventsFn != nil {
		return m.eventsFn(id)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func newTestRouter(cmds AccountCommander, qrys AccountQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAccountHandler(cmds, qrys)
	v1 := r.Group("/v1")
	v1.POST("/accounts", h.OpenAccount)
	v1.GET("/accounts", h.ListAccounts)
	v1.GET("/accounts/:accountId", h.GetAccount)
	v1.GET("/accounts/:accountId/events", h.ListAccountEvents)
	v1.POST("/accounts/:accountId/deposits", h.Deposit)
	v1.POST("/accounts/:accountId/withdrawals", h.Withdraw)
	v1.PUT("/accounts/:accountId/password", h.UpdatePassword)
	v1.DELETE("/accounts/:accountId", h.CloseAccount)
	v1.POST("/remittances", h.Remit)
	return r
}

func doRequest(router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testView() *query.AccountView {
	return &query.AccountView{
		ID: "acc-1", Name: "young", Balance: 350,
		OpenedAt: time.Now(), UpdatedAt: time.Now(),
	}
}

// ---- tests ----

func TestOpenAccountHTTP(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		cmds := &mockAccountCommander{
			openFn: func(cmd command.OpenAccountCommand) (*domain.Account, error) {
				account := domain.NewAccount("acc-1", cmd.Name)
				if err := account.Open(cmd.Secret); err != nil {
					return nil, err
				}
				return account, nil
			},
		}
		router := newTestRouter(cmds, &mockAccountQuerier{})

		w := doRequest(router, http.MethodPost, "/v1/accounts",
			map[string]any{"name": "young", "password": "password1"})

		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
		}
		var view query.AccountView
		if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if view.ID != "acc-1" || view.Name != "young" || view.Balance != 0 {
			t.Errorf("unexpected view: %+v", view)
		}
	})

	t.Run("short password rejected before the command layer", func(t *testing.T) {
		router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{})

		w := doRequest(router, http.MethodPost, "/v1/accounts",
			map[string]any{"name": "young", "password": "short"})

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "unauthorized", err: domain.ErrUnauthorized, status: http.StatusUnauthorized},
		{name: "insufficient funds", err: domain.ErrInsufficientFunds, status: http.StatusUnprocessableEntity},
		{name: "invariant violation", err: domain.ErrInvariantViolation, status: http.StatusUnprocessableEntity},
		{name: "not found", err: domain.ErrNotFound, status: http.StatusNotFound},
		{name: "conflict", err: domain.ErrConcurrencyConflict, status: http.StatusConflict},
		{name: "storage down", err: domain.ErrStorageUnavailable, status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockAccountCommander{
				withdrawFn: func(command.WithdrawCommand) error { return tt.err },
			}
			router := newTestRouter(cmds, &mockAccountQuerier{})

			w := doRequest(router, http.MethodPost, "/v1/accounts/acc-1/withdrawals",
				map[string]any{"amount": 100, "password": "password1"})

			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestDepositHTTP(t *testing.T) {
	var got command.DepositCommand
	cmds := &mockAccountCommander{
		depositFn: func(cmd command.DepositCommand) error {
			got = cmd
			return nil
		},
	}
	router := newTestRouter(cmds, &mockAccountQuerier{})

	w := doRequest(router, http.MethodPost, "/v1/accounts/acc-1/deposits",
		map[string]any{"amount": 500})

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if got.AccountID != "acc-1" || got.Amount != 500 {
		t.Errorf("unexpected command: %+v", got)
	}
}

func TestRemitHTTP(t *testing.T) {
	var got command.RemitCommand
	cmds := &mockAccountCommander{
		remitFn: func(cmd command.RemitCommand) error {
			got = cmd
			return nil
		},
	}
	router := newTestRouter(cmds, &mockAccountQuerier{})

	w := doRequest(router, http.MethodPost, "/v1/remittances", map[string]any{
		"senderId": "acc-1", "receiverId": "acc-2", "amount": 100, "password": "password1",
	})

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if got.SenderID != "acc-1" || got.ReceiverID != "acc-2" || got.Amount != 100 {
		t.Errorf("unexpected command: %+v", got)
	}
}

func TestGetAccountHTTP(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		qrys := &mockAccountQuerier{
			getFn: func(id string) (*query.AccountView, error) {
				if id != "acc-1" {
					return nil, domain.ErrNotFound
				}
				return testView(), nil
			},
		}
		router := newTestRouter(&mockAccountCommander{}, qrys)

		w := doRequest(router, http.MethodGet, "/v1/accounts/acc-1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("missing", func(t *testing.T) {
		qrys := &mockAccountQuerier{
			getFn: func(string) (*query.AccountView, error) { return nil, domain.ErrNotFound },
		}
		router := newTestRouter(&mockAccountCommander{}, qrys)

		w := doRequest(router, http.MethodGet, "/v1/accounts/missing", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

func TestListAccountEventsHTTP(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		occurred := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		qrys := &mockAccountQuerier{
			eventsFn: func(id string) ([]domain.Event, error) {
				if id != "acc-1" {
					return nil, domain.ErrNotFound
				}
				return []domain.Event{
					{ID: "evt-1", Subject: domain.AccountOpened, AccountID: "acc-1", OccurredAt: occurred},
					{ID: "evt-2", Subject: domain.Deposited, AccountID: "acc-1", OccurredAt: occurred,
						Data: map[string]string{"amount": "500", "balance": "500"}},
				}, nil
			},
		}
		router := newTestRouter(&mockAccountCommander{}, qrys)

		w := doRequest(router, http.MethodGet, "/v1/accounts/acc-1/events", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp ListAccountEventsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if len(resp.Events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(resp.Events))
		}
		if resp.Events[0].Subject != domain.AccountOpened || resp.Events[1].Data["amount"] != "500" {
			t.Errorf("unexpected events: %+v", resp.Events)
		}
	})

	t.Run("missing account", func(t *testing.T) {
		qrys := &mockAccountQuerier{
			eventsFn: func(string) ([]domain.Event, error) { return nil, domain.ErrNotFound },
		}
		router := newTestRouter(&mockAccountCommander{}, qrys)

		w := doRequest(router, http.MethodGet, "/v1/accounts/missing/events", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	t.Run("empty history is an empty list", func(t *testing.T) {
		qrys := &mockAccountQuerier{
			eventsFn: func(string) ([]domain.Event, error) { return nil, nil },
		}
		router := newTestRouter(&mockAccountCommander{}, qrys)

		w := doRequest(router, http.MethodGet, "/v1/accounts/acc-1/events", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp ListAccountEventsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if resp.Events == nil {
			t.Error("events must serialise as [], not null")
		}
	})
}

func TestListAccountsHTTP(t *testing.T) {
	t.Run("requires name", func(t *testing.T) {
		router := newTestRouter(&mockAccountCommander{}, &mockAccountQuerier{})

		w := doRequest(router, http.MethodGet, "/v1/accounts", nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("empty result is an empty list", func(t *testing.T) {
		qrys := &mockAccountQuerier{
			listFn: func(string) ([]query.AccountView, error) { return nil, nil },
		}
		router := newTestRouter(&mockAccountCommander{}, qrys)

		w := doRequest(router, http.MethodGet, "/v1/accounts?name=nobody", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp ListAccountsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		if resp.Accounts == nil {
			t.Error("accounts must serialise as [], not null")
		}
	})
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// apiError is an RFC 9457 problem returned by the server.
type apiError struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Class  string `json:"class"`
}

func (e *apiError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%d): %s", e.Title, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s (%d)", e.Title, e.Status)
}

// Transient reports whether retrying the request can succeed.
func (e *apiError) Transient() bool {
	return e.Class == "transient" || e.Status == fiber.StatusServiceUnavailable || e.Status == fiber.StatusTooManyRequests
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type transactionView struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Amount         json.Number     `json:"amount"`
	ExpectedAmount *json.Number    `json:"expected_amount"`
	Status         string          `json:"status"`
	OperationCode  string          `json:"operation_code"`
	Withdrawal     *withdrawalView `json:"withdrawal"`
	CreatedAt      time.Time       `json:"created_at"`
}

type withdrawalView struct {
	CVU   string `json:"cvu"`
	Alias string `json:"alias"`
	Bank  string `json:"bank"`
}

type verifyView struct {
	Status                     string `json:"status"`
	ManualVerificationRequired bool   `json:"manual_verification_required"`
	PaymentID                  string `json:"payment_id"`
	AlreadyProcessed           bool   `json:"already_processed"`
}

type destinationView struct {
	BankName string `json:"bank_name"`
	Alias    string `json:"alias"`
	CBU      string `json:"cbu"`
}

type meView struct {
	Username string      `json:"username"`
	Role     string      `json:"role"`
	Balance  json.Number `json:"balance"`
}

// client talks to the chipload HTTP API.
type client struct {
	baseURL string
	token   string
	timeout time.Duration
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: 15 * time.Second,
	}
}

func (c *client) do(method, path string, body any, out any) error {
	agent := fiber.AcquireAgent()
	defer fiber.ReleaseAgent(agent)

	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	if body != nil {
		agent.JSON(body)
	}
	agent.Timeout(c.timeout)
	if err := agent.Parse(); err != nil {
		return err
	}

	code, raw, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code >= fiber.StatusBadRequest {
		problem := &apiError{Status: code, Title: fmt.Sprintf("HTTP %d", code)}
		_ = json.Unmarshal(raw, problem)
		return problem
	}
	if out == nil || code == fiber.StatusNoContent {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(env.Data, out)
}

func (c *client) createTransaction(kind, amount, cvu, alias, bank string) (*transactionView, error) {
	body := map[string]any{
		"type":   strings.ToUpper(kind),
		"amount": json.Number(amount),
	}
	if cvu != "" {
		body["withdrawalCvu"] = cvu
	}
	if alias != "" {
		body["withdrawalAlias"] = alias
	}
	if bank != "" {
		body["withdrawalBank"] = bank
	}
	var txn transactionView
	if err := c.do(fiber.MethodPost, "/transactions", body, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (c *client) settle(id, decision string) (*transactionView, error) {
	var txn transactionView
	err := c.do(fiber.MethodPut, "/transactions/"+id+"/status", map[string]string{"status": strings.ToUpper(decision)}, &txn)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (c *client) verify(id string) (*verifyView, error) {
	var v verifyView
	if err := c.do(fiber.MethodPost, "/transactions/"+id+"/verify-payment", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *client) transactions() ([]transactionView, error) {
	var list []transactionView
	if err := c.do(fiber.MethodGet, "/transactions", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *client) destinations() ([]destinationView, error) {
	var list []destinationView
	if err := c.do(fiber.MethodGet, "/destinations", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *client) me() (*meView, error) {
	var me meView
	if err := c.do(fiber.MethodGet, "/users/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

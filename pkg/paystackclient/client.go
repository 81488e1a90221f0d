/**
 * @description
 * This package provides a client for interacting with the Paystack API.
 * It encapsulates the logic for making authenticated HTTP requests to Paystack's
 * transfer endpoints, handling request body construction, and parsing responses.
 *
 * Amounts cross this boundary in whole currency units and are converted to the
 * minor unit (kobo) on the wire, since Paystack expresses all amounts in kobo.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package paystackclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Client is a client for the Paystack API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Paystack API client.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		BaseURL:   baseURL,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateRecipientRequest is the payload for registering a transfer recipient
// handle with Paystack.
type CreateRecipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

// RecipientData is the relevant subset of Paystack's transfer recipient resource.
type RecipientData struct {
	RecipientCode string `json:"recipient_code"`
	Active        bool   `json:"active"`
}

// TransferRequest is the payload for a single transfer initiation.
type TransferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}

// TransferData is the relevant subset of Paystack's transfer resource, shared
// by the initiation, verify-by-reference and fetch-by-code endpoints.
type TransferData struct {
	TransferCode  string `json:"transfer_code"`
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// BulkTransferItem is one entry in a bulk transfer request.
type BulkTransferItem struct {
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}

// BulkTransferRequest is the payload for a bulk transfer initiation.
type BulkTransferRequest struct {
	Currency  string             `json:"currency"`
	Source    string             `json:"source"`
	Transfers []BulkTransferItem `json:"transfers"`
}

// BulkTransferData is Paystack's response to a bulk initiation: the batch
// handle plus the queued per-recipient transfers.
type BulkTransferData struct {
	BatchCode string         `json:"batch_code"`
	Transfers []TransferData `json:"transfers"`
}

// TransactionData is the relevant subset of Paystack's transaction resource,
// used to verify an inbound funding transaction before a bulk disbursement.
type TransactionData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

// Bank is one entry of Paystack's supported bank list.
type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Slug string `json:"slug"`
}

// ErrorResponse represents an error from the Paystack API. Paystack signals
// failure with status=false and a human-readable message.
type ErrorResponse struct {
	Status     bool   `json:"status"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("paystack api error: %s", e.Message)
	}
	return "unknown paystack api error"
}

// envelope is Paystack's standard response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateRecipient registers a recipient's bank account with Paystack and
// returns the issued recipient code.
func (c *Client) CreateRecipient(ctx context.Context, name, email, accountNumber, bankCode string) (*RecipientData, error) {
	payload := CreateRecipientRequest{
		Type:          "nuban",
		Name:          name,
		Email:         email,
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		Currency:      "NGN",
	}
	var data RecipientData
	if err := c.do(ctx, "POST", "/transferrecipient", payload, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// InitiateTransfer asks Paystack to move funds from the balance to one
// recipient. The amount is in whole currency units.
func (c *Client) InitiateTransfer(ctx context.Context, recipientCode, reference, reason string, amount int64) (*TransferData, error) {
	payload := TransferRequest{
		Source:    "balance",
		Amount:    amount * 100,
		Recipient: recipientCode,
		Reference: reference,
		Reason:    reason,
	}
	var data TransferData
	if err := c.do(ctx, "POST", "/transfer", payload, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// InitiateBulkTransfer queues one transfer per item in a single provider call.
// Item amounts are in whole currency units.
func (c *Client) InitiateBulkTransfer(ctx context.Context, items []BulkTransferItem) (*BulkTransferData, error) {
	payload := BulkTransferRequest{
		Currency: "NGN",
		Source:   "balance",
	}
	for _, item := range items {
		item.Amount = item.Amount * 100
		payload.Transfers = append(payload.Transfers, item)
	}
	var data BulkTransferData
	if err := c.do(ctx, "POST", "/transfer/bulk", payload, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// VerifyTransaction checks an inbound funding transaction by its reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*TransactionData, error) {
	var data TransactionData
	if err := c.do(ctx, "GET", "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// FetchTransfer looks up a transfer by its provider transfer code. A nil
// result with a nil error means Paystack has no record of the code.
func (c *Client) FetchTransfer(ctx context.Context, transferCode string) (*TransferData, error) {
	var data TransferData
	if err := c.do(ctx, "GET", "/transfer/"+url.PathEscape(transferCode), nil, &data); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &data, nil
}

// VerifyTransfer looks up a transfer by the reference supplied at initiation.
// A nil result with a nil error means Paystack has no record of the reference.
func (c *Client) VerifyTransfer(ctx context.Context, reference string) (*TransferData, error) {
	var data TransferData
	if err := c.do(ctx, "GET", "/transfer/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &data, nil
}

// FetchBulkTransfer looks up every transfer in a bulk batch by its batch code.
func (c *Client) FetchBulkTransfer(ctx context.Context, batchCode string) ([]TransferData, error) {
	var data []TransferData
	if err := c.do(ctx, "GET", "/transfer/bulk/"+url.PathEscape(batchCode), nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// ListBanks fetches the supported NGN bank list.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	var data []Bank
	if err := c.do(ctx, "GET", "/bank?currency=NGN", nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func isNotFound(err error) bool {
	apiErr, ok := err.(*ErrorResponse)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// do executes one authenticated request and decodes the data portion of the
// response envelope into out.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=paystack_client method=%s path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", method, path, resp.StatusCode)
			return fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		errResp.StatusCode = resp.StatusCode
		log.Printf("level=warn component=paystack_client method=%s path=%s status=%d message=%q", method, path, resp.StatusCode, errResp.Message)
		return &errResp
	}

	var env envelope
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		return fmt.Errorf("failed to decode success response: %w", err)
	}
	if !env.Status {
		return &ErrorResponse{Status: env.Status, Message: env.Message, StatusCode: resp.StatusCode}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

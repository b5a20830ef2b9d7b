package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/brojonat/tokenforge/service/db"
	"github.com/brojonat/tokenforge/service/tokentx"
	"github.com/shopspring/decimal"
)

const maxListLimit = 500

type createTokenParams struct {
	Payer    string `json:"payer"`
	Decimals *int   `json:"decimals"`
}

type mintTokenParams struct {
	Payer            string      `json:"payer"`
	MintAddress      string      `json:"mintAddress"`
	RecipientAddress string      `json:"recipientAddress"`
	Amount           json.Number `json:"amount"`
}

type transferTokenParams struct {
	Payer       string      `json:"payer"`
	FromAddress string      `json:"fromAddress"`
	ToAddress   string      `json:"toAddress"`
	MintAddress string      `json:"mintAddress"`
	Amount      json.Number `json:"amount"`
}

type burnTokenParams struct {
	Payer          string      `json:"payer"`
	AccountAddress string      `json:"accountAddress"`
	MintAddress    string      `json:"mintAddress"`
	Amount         json.Number `json:"amount"`
}

type delegateTokenParams struct {
	Payer           string      `json:"payer"`
	OwnerAddress    string      `json:"ownerAddress"`
	DelegateAddress string      `json:"delegateAddress"`
	MintAddress     string      `json:"mintAddress"`
	Amount          json.Number `json:"amount"`
}

// transactionResponse is the "data" member of every successful build.
type transactionResponse struct {
	EncodedTransaction   string   `json:"encodedTransaction"`
	MintPublicKey        string   `json:"mintPublicKey,omitempty"`
	Encoding             string   `json:"encoding"`
	FeePayer             string   `json:"feePayer"`
	Blockhash            string   `json:"blockhash"`
	LastValidBlockHeight uint64   `json:"lastValidBlockHeight"`
	MissingSigners       []string `json:"missingSigners"`
	CreatedAccounts      []string `json:"createdAccounts,omitempty"`
}

// handleCreateToken returns a handler that builds a create-mint transaction.
// POST /api/v1/create-token
func handleCreateToken(svc *tokentx.Service, sink *buildSink, limit int64, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p createTokenParams
		if !decodeParams(w, r, limit, "createToken", &p, logger) {
			return
		}
		if p.Payer == "" || p.Decimals == nil {
			writeMissingParams(w, "createToken")
			return
		}

		res, err := svc.CreateToken(r.Context(), tokentx.CreateTokenParams{
			Payer:    p.Payer,
			Decimals: *p.Decimals,
		})
		respond(w, r, sink, res, err, true, logger)
	})
}

// handleMintToken returns a handler that builds a mint-to transaction.
// POST /api/v1/mint-token
func handleMintToken(svc *tokentx.Service, sink *buildSink, limit int64, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p mintTokenParams
		if !decodeParams(w, r, limit, "mintToken", &p, logger) {
			return
		}
		if anyEmpty(p.Payer, p.MintAddress, p.RecipientAddress, p.Amount.String()) {
			writeMissingParams(w, "mintToken")
			return
		}
		amount, ok := parseAmount(w, p.Amount)
		if !ok {
			return
		}

		res, err := svc.MintToken(r.Context(), tokentx.MintTokenParams{
			Payer:     p.Payer,
			Mint:      p.MintAddress,
			Recipient: p.RecipientAddress,
			Amount:    amount,
		})
		respond(w, r, sink, res, err, false, logger)
	})
}

// handleTransferToken returns a handler that builds a transfer transaction.
// POST /api/v1/transfer-token
func handleTransferToken(svc *tokentx.Service, sink *buildSink, limit int64, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p transferTokenParams
		if !decodeParams(w, r, limit, "transferToken", &p, logger) {
			return
		}
		if anyEmpty(p.Payer, p.FromAddress, p.ToAddress, p.MintAddress, p.Amount.String()) {
			writeMissingParams(w, "transferToken")
			return
		}
		amount, ok := parseAmount(w, p.Amount)
		if !ok {
			return
		}

		res, err := svc.TransferToken(r.Context(), tokentx.TransferTokenParams{
			Payer:  p.Payer,
			From:   p.FromAddress,
			To:     p.ToAddress,
			Mint:   p.MintAddress,
			Amount: amount,
		})
		respond(w, r, sink, res, err, false, logger)
	})
}

// handleBurnToken returns a handler that builds a burn transaction.
// POST /api/v1/burn-token
func handleBurnToken(svc *tokentx.Service, sink *buildSink, limit int64, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p burnTokenParams
		if !decodeParams(w, r, limit, "burnToken", &p, logger) {
			return
		}
		if anyEmpty(p.Payer, p.AccountAddress, p.MintAddress, p.Amount.String()) {
			writeMissingParams(w, "burnToken")
			return
		}
		amount, ok := parseAmount(w, p.Amount)
		if !ok {
			return
		}

		res, err := svc.BurnToken(r.Context(), tokentx.BurnTokenParams{
			Payer:   p.Payer,
			Account: p.AccountAddress,
			Mint:    p.MintAddress,
			Amount:  amount,
		})
		respond(w, r, sink, res, err, false, logger)
	})
}

// handleDelegateToken returns a handler that builds an approve transaction.
// POST /api/v1/delegate-token
func handleDelegateToken(svc *tokentx.Service, sink *buildSink, limit int64, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p delegateTokenParams
		if !decodeParams(w, r, limit, "delegateToken", &p, logger) {
			return
		}
		if anyEmpty(p.Payer, p.OwnerAddress, p.DelegateAddress, p.MintAddress, p.Amount.String()) {
			writeMissingParams(w, "delegateToken")
			return
		}
		amount, ok := parseAmount(w, p.Amount)
		if !ok {
			return
		}

		res, err := svc.DelegateToken(r.Context(), tokentx.DelegateTokenParams{
			Payer:    p.Payer,
			Owner:    p.OwnerAddress,
			Delegate: p.DelegateAddress,
			Mint:     p.MintAddress,
			Amount:   amount,
		})
		respond(w, r, sink, res, err, false, logger)
	})
}

// handleListBuilds returns a handler that lists recorded builds.
// GET /api/v1/builds?payer={payer}&operation={op}&mint={mint}&limit={n}&offset={n}
func handleListBuilds(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit, err := parseQueryInt(q.Get("limit"), db.DefaultListLimit)
		if err != nil || limit < 1 || limit > maxListLimit {
			writeError(w, fmt.Sprintf("limit must be between 1 and %d", maxListLimit), http.StatusBadRequest)
			return
		}
		offset, err := parseQueryInt(q.Get("offset"), 0)
		if err != nil || offset < 0 {
			writeError(w, "offset must be a non-negative integer", http.StatusBadRequest)
			return
		}

		params := db.ListBuildsParams{
			Payer:     q.Get("payer"),
			Operation: q.Get("operation"),
			Mint:      q.Get("mint"),
			Limit:     int32(limit),
			Offset:    int32(offset),
		}

		builds, err := store.ListBuilds(r.Context(), params)
		if err != nil {
			logger.Error("failed to list builds", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		total, err := store.CountBuilds(r.Context(), params)
		if err != nil {
			logger.Error("failed to count builds", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Debug("builds listed", "count", len(builds), "total", total)

		writeJSON(w, map[string]interface{}{
			"builds": builds,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		}, http.StatusOK)
	})
}

// decodeParams reads a {"params": {...}} body into dst. It writes the error
// response itself and reports whether the handler should continue.
func decodeParams(w http.ResponseWriter, r *http.Request, limit int64, op string, dst any, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req struct {
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug("failed to decode request", "operation", op, "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, fmt.Sprintf("request body too large: maximum size is %d bytes", maxErr.Limit), http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return false
	}

	if len(req.Params) == 0 || string(req.Params) == "null" {
		writeMissingParams(w, op)
		return false
	}

	if err := json.Unmarshal(req.Params, dst); err != nil {
		logger.Debug("invalid parameters", "operation", op, "error", err)
		writeError(w, fmt.Sprintf("invalid parameters for %s: %v", op, err), http.StatusBadRequest)
		return false
	}
	return true
}

func parseAmount(w http.ResponseWriter, n json.Number) (decimal.Decimal, bool) {
	amount, err := tokentx.ParseAmount(n.String())
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return decimal.Decimal{}, false
	}
	return amount, true
}

// respond writes the build result or maps the failure to a status code.
func respond(w http.ResponseWriter, r *http.Request, sink *buildSink, res *tokentx.Result, err error, withMint bool, logger *slog.Logger) {
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), "failed to build transaction", "error", err, "kind", tokentx.Kind(err))
		}
		writeErrorKind(w, err.Error(), tokentx.Kind(err), status)
		return
	}

	writeJSON(w, map[string]interface{}{
		"data": toTransactionResponse(res, withMint),
	}, http.StatusOK)

	// The client has its transaction before the sinks run.
	_ = http.NewResponseController(w).Flush()
	sink.record(r.Context(), res)
}

func toTransactionResponse(res *tokentx.Result, withMint bool) transactionResponse {
	resp := transactionResponse{
		EncodedTransaction:   res.Transaction,
		Encoding:             string(res.Encoding),
		FeePayer:             res.FeePayer.String(),
		Blockhash:            res.Blockhash.String(),
		LastValidBlockHeight: res.LastValidBlockHeight,
		MissingSigners:       make([]string, 0, len(res.MissingSigners)),
	}
	if withMint {
		resp.MintPublicKey = res.MintAddress.String()
	}
	for _, signer := range res.MissingSigners {
		resp.MissingSigners = append(resp.MissingSigners, signer.String())
	}
	for _, acct := range res.CreatedAccounts {
		resp.CreatedAccounts = append(resp.CreatedAccounts, acct.String())
	}
	return resp
}

// statusForError maps failure kinds to HTTP status codes.
func statusForError(err error) int {
	switch tokentx.Kind(err) {
	case tokentx.KindInvalidInput:
		return http.StatusBadRequest
	case tokentx.KindNotFound:
		return http.StatusNotFound
	case tokentx.KindLedgerUnavailable:
		return http.StatusBadGateway
	case tokentx.KindCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func anyEmpty(values ...string) bool {
	for _, v := range values {
		if v == "" {
			return true
		}
	}
	return false
}

func parseQueryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func writeMissingParams(w http.ResponseWriter, op string) {
	writeErrorKind(w, fmt.Sprintf("Missing parameters for %s", op), tokentx.KindInvalidInput, http.StatusBadRequest)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeErrorKind(w, message, "", statusCode)
}

func writeErrorKind(w http.ResponseWriter, message, kind string, statusCode int) {
	body := map[string]string{"error": message}
	if kind != "" {
		body["kind"] = kind
	}
	writeJSON(w, body, statusCode)
}

package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"magnetd/crypto"
	"magnetd/native/magnet"
	"magnetd/observability/metrics"
)

const (
	codeMagnetInvalidParams = -32061
	codeMagnetNotFound      = -32062
	codeMagnetForbidden     = -32063
	codeMagnetConflict      = -32064
	codeMagnetInternal      = -32065
)

type registerFunderParams struct {
	Caller      string   `json:"caller"`
	Admins      []string `json:"admins"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl"`
}

type mintParams struct {
	Caller              string `json:"caller"`
	Recipient           string `json:"recipient"`
	Token               string `json:"token"`
	StartTime           uint64 `json:"startTime"`
	VestingPeriodLength uint64 `json:"vestingPeriodLength"`
	AmountPerPeriod     string `json:"amountPerPeriod"`
	CliffTime           uint64 `json:"cliffTime"`
	EndTime             uint64 `json:"endTime"`
	Message             string `json:"message"`
}

type depositParams struct {
	Caller   string `json:"caller"`
	MagnetID uint64 `json:"magnetId"`
	Amount   string `json:"amount"`
	Token    string `json:"token"`
}

type withdrawParams struct {
	Caller   string `json:"caller"`
	MagnetID uint64 `json:"magnetId"`
	Amount   string `json:"amount"`
}

type addressParams struct {
	Address string `json:"address"`
}

type funderParams struct {
	Funder string `json:"funder"`
}

type isAdminParams struct {
	Address string `json:"address"`
	Funder  string `json:"funder"`
}

type magnetIDParams struct {
	ID uint64 `json:"id"`
}

type recipientParams struct {
	Recipient string `json:"recipient"`
}

type funderResult struct {
	ID     uint64 `json:"id"`
	Funder string `json:"funder"`
}

type mintResult struct {
	ID        uint64 `json:"id"`
	Recipient string `json:"recipient"`
	Funder    string `json:"funder"`
}

type okResult struct {
	OK bool `json:"ok"`
}

type boolResult struct {
	Value bool `json:"value"`
}

type countResult struct {
	Count uint64 `json:"count"`
}

type idListResult struct {
	IDs []uint64 `json:"ids"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

type magnetJSON struct {
	ID                  uint64 `json:"id"`
	Recipient           string `json:"recipient"`
	Token               string `json:"token"`
	Funder              string `json:"funder"`
	StartTime           uint64 `json:"startTime"`
	VestingPeriodLength uint64 `json:"vestingPeriodLength"`
	AmountPerPeriod     string `json:"amountPerPeriod"`
	CliffTime           uint64 `json:"cliffTime"`
	EndTime             uint64 `json:"endTime"`
	Message             string `json:"message"`
	Balance             string `json:"balance"`
	AmountWithdrawn     string `json:"amountWithdrawn"`
}

func newMagnetJSON(m *magnet.VestingMagnet) magnetJSON {
	return magnetJSON{
		ID:                  m.ID,
		Recipient:           formatAddress(m.Recipient),
		Token:               formatAddress(m.Token),
		Funder:              formatAddress(m.Funder),
		StartTime:           m.StartTime,
		VestingPeriodLength: m.VestingPeriodLength,
		AmountPerPeriod:     m.AmountPerPeriod.String(),
		CliffTime:           m.CliffTime,
		EndTime:             m.EndTime,
		Message:             m.Message,
		Balance:             m.Balance.String(),
		AmountWithdrawn:     m.AmountWithdrawn.String(),
	}
}

func parseAddress(value string) ([20]byte, error) {
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Array(), nil
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.MagnetPrefix, addr[:]).String()
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

// writeEngineError maps engine failures onto JSON-RPC error codes. The
// message field carries the engine's error string untouched: callers match
// on these strings.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, magnet.ErrMagnetNotFound) || errors.Is(err, magnet.ErrNotFunder):
		writeError(w, http.StatusNotFound, id, codeMagnetNotFound, err.Error(), nil)
	case errors.Is(err, magnet.ErrNotRegistered) ||
		errors.Is(err, magnet.ErrDepositNotFunder) ||
		errors.Is(err, magnet.ErrNotFunderOrRecipient):
		writeError(w, http.StatusForbidden, id, codeMagnetForbidden, err.Error(), nil)
	case errors.Is(err, magnet.ErrFunderExists) ||
		errors.Is(err, magnet.ErrZeroAvailable) ||
		errors.Is(err, magnet.ErrExceedsAvailable) ||
		errors.Is(err, magnet.ErrTransferFailed) ||
		errors.Is(err, magnet.ErrAdditionOverflow) ||
		errors.Is(err, magnet.ErrSubtractionOverflow):
		writeError(w, http.StatusConflict, id, codeMagnetConflict, err.Error(), nil)
	case errors.Is(err, magnet.ErrZeroRecipient) ||
		errors.Is(err, magnet.ErrStartTimeInPast) ||
		errors.Is(err, magnet.ErrCliffBeforeStart) ||
		errors.Is(err, magnet.ErrEndTimeOrder) ||
		errors.Is(err, magnet.ErrZeroPeriod) ||
		errors.Is(err, magnet.ErrPeriodTooLong) ||
		errors.Is(err, magnet.ErrDurationNotMultiple) ||
		errors.Is(err, magnet.ErrZeroAmountPerPeriod) ||
		errors.Is(err, magnet.ErrZeroDeposit) ||
		errors.Is(err, magnet.ErrZeroWithdraw) ||
		errors.Is(err, magnet.ErrTokenMismatch):
		writeError(w, http.StatusBadRequest, id, codeMagnetInvalidParams, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeMagnetInternal, err.Error(), nil)
	}
}

func (s *Server) handleRegisterFunder(w http.ResponseWriter, req *RPCRequest) {
	var params registerFunderParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	admins := make([][20]byte, 0, len(params.Admins))
	for _, admin := range params.Admins {
		parsed, err := parseAddress(admin)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
			return
		}
		admins = append(admins, parsed)
	}
	funder, err := s.engine.RegisterFunder(caller, admins, params.Name, params.Description, params.ImageURL)
	if err != nil {
		metrics.Magnet().OperationFailed(req.Method)
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Magnet().FunderRegistered()
	writeResult(w, req.ID, funderResult{ID: funder.ID, Funder: formatAddress(funder.Funder)})
}

func (s *Server) handleMint(w http.ResponseWriter, req *RPCRequest) {
	var params mintParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	token, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	amountPerPeriod, err := parseAmount(params.AmountPerPeriod)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	m, err := s.engine.MintVestingMagnet(caller, recipient, token, params.StartTime, params.VestingPeriodLength, amountPerPeriod, params.CliffTime, params.EndTime, params.Message)
	if err != nil {
		metrics.Magnet().OperationFailed(req.Method)
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Magnet().MagnetMinted()
	writeResult(w, req.ID, mintResult{ID: m.ID, Recipient: formatAddress(m.Recipient), Funder: formatAddress(m.Funder)})
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params depositParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	token, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.Deposit(caller, params.MagnetID, amount, token); err != nil {
		metrics.Magnet().OperationFailed(req.Method)
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Magnet().Deposited()
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params withdrawParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	role := "funder"
	if m, getErr := s.engine.Get(params.MagnetID); getErr == nil && m.Recipient == caller {
		role = "recipient"
	}
	if err := s.engine.Withdraw(caller, params.MagnetID, amount); err != nil {
		metrics.Magnet().OperationFailed(req.Method)
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Magnet().Withdrawn(role)
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleIsFunder(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	writeResult(w, req.ID, boolResult{Value: s.engine.IsFunder(addr)})
}

func (s *Server) handleGetFunderCount(w http.ResponseWriter, req *RPCRequest) {
	count, err := s.engine.FunderCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, countResult{Count: count})
}

func (s *Server) handleGetMagnetCountByFunder(w http.ResponseWriter, req *RPCRequest) {
	addr, ok := s.decodeFunderAddress(w, req)
	if !ok {
		return
	}
	count, err := s.engine.MagnetCountByFunder(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, countResult{Count: count})
}

func (s *Server) handleGetMagnetIdsByFunder(w http.ResponseWriter, req *RPCRequest) {
	addr, ok := s.decodeFunderAddress(w, req)
	if !ok {
		return
	}
	ids, err := s.engine.MagnetIDsByFunder(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, idListResult{IDs: ids})
}

func (s *Server) handleGetAdminsByFunder(w http.ResponseWriter, req *RPCRequest) {
	addr, ok := s.decodeFunderAddress(w, req)
	if !ok {
		return
	}
	admins, err := s.engine.AdminsByFunder(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	encoded := make([]string, 0, len(admins))
	for _, admin := range admins {
		encoded = append(encoded, formatAddress(admin))
	}
	writeResult(w, req.ID, struct {
		Admins []string `json:"admins"`
	}{Admins: encoded})
}

func (s *Server) handleIsAdmin(w http.ResponseWriter, req *RPCRequest) {
	var params isAdminParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	funderAddr, err := parseAddress(params.Funder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	writeResult(w, req.ID, boolResult{Value: s.engine.IsAdmin(addr, funderAddr)})
}

func (s *Server) handleIsMagnet(w http.ResponseWriter, req *RPCRequest) {
	var params magnetIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	writeResult(w, req.ID, boolResult{Value: s.engine.IsMagnet(params.ID)})
}

func (s *Server) handleGetMagnetCount(w http.ResponseWriter, req *RPCRequest) {
	count, err := s.engine.MagnetCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, countResult{Count: count})
}

func (s *Server) handleNextMagnetID(w http.ResponseWriter, req *RPCRequest) {
	next, err := s.engine.NextMagnetID()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, struct {
		NextMagnetID uint64 `json:"nextMagnetId"`
	}{NextMagnetID: next})
}

func (s *Server) handleGetMagnet(w http.ResponseWriter, req *RPCRequest) {
	var params magnetIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	m, err := s.engine.Get(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newMagnetJSON(m))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params magnetIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.engine.Balance(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: balance.String()})
}

func (s *Server) handleGetMagnetsByRecipient(w http.ResponseWriter, req *RPCRequest) {
	var params recipientParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	ids, err := s.engine.MagnetsByRecipient(recipient)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, idListResult{IDs: ids})
}

func (s *Server) handleGetVestedAmount(w http.ResponseWriter, req *RPCRequest) {
	var params magnetIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := s.engine.GetVestedAmount(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: amount.String()})
}

func (s *Server) handleGetVestedAmountIgnoringCliff(w http.ResponseWriter, req *RPCRequest) {
	var params magnetIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := s.engine.GetVestedAmountIgnoringCliff(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: amount.String()})
}

func (s *Server) decodeFunderAddress(w http.ResponseWriter, req *RPCRequest) ([20]byte, bool) {
	var params funderParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return [20]byte{}, false
	}
	addr, err := parseAddress(params.Funder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMagnetInvalidParams, "invalid_params", err.Error())
		return [20]byte{}, false
	}
	return addr, true
}

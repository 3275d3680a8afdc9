package rpc

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"magnetd/core/state"
	"magnetd/native/magnet"
	"magnetd/storage"
)

const testNow = uint64(2_000_000)

type testServer struct {
	srv    *httptest.Server
	ledger *state.TokenLedger
	now    uint64
}

func newTestServer(t *testing.T, authToken string) *testServer {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	ledger := state.NewTokenLedger(mgr)
	engine := magnet.NewEngine()
	engine.SetState(mgr)
	engine.SetGateway(ledger)
	ts := &testServer{ledger: ledger, now: testNow}
	engine.SetNowFunc(func() uint64 { return ts.now })
	server := NewServer(engine, slog.Default(), authToken)
	ts.srv = httptest.NewServer(http.HandlerFunc(server.handle))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) call(t *testing.T, token, method string, params interface{}) (*RPCResponse, int) {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, ts.srv.URL, bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	return decoded, resp.StatusCode
}

func (ts *testServer) result(t *testing.T, method string, params, out interface{}) {
	t.Helper()
	resp, status := ts.call(t, "", method, params)
	require.Nil(t, resp.Error, "method %s", method)
	require.Equal(t, http.StatusOK, status)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

var (
	rpcFunder    = formatAddress([20]byte{0xF1})
	rpcRecipient = formatAddress([20]byte{0xA1})
	rpcAdmin     = formatAddress([20]byte{0xAD})
	rpcToken     = formatAddress([20]byte{0x70})
	rpcStranger  = formatAddress([20]byte{0x99})
)

func registerRPCFunder(t *testing.T, ts *testServer) {
	t.Helper()
	var result funderResult
	ts.result(t, "magnet_registerFunder", registerFunderParams{
		Caller:      rpcFunder,
		Admins:      []string{rpcAdmin},
		Name:        "Funder 1",
		Description: "Description 1",
		ImageURL:    "imageUrl 1",
	}, &result)
	require.Equal(t, uint64(0), result.ID)
	require.Equal(t, rpcFunder, result.Funder)
}

func mintRPCMagnet(t *testing.T, ts *testServer) uint64 {
	t.Helper()
	var result mintResult
	ts.result(t, "magnet_mint", mintParams{
		Caller:              rpcFunder,
		Recipient:           rpcRecipient,
		Token:               rpcToken,
		StartTime:           ts.now + 20,
		VestingPeriodLength: 1,
		AmountPerPeriod:     "1",
		CliffTime:           ts.now + 40,
		EndTime:             ts.now + 60,
		Message:             "Message 1",
	}, &result)
	require.Equal(t, rpcRecipient, result.Recipient)
	return result.ID
}

func fundRPCFunder(t *testing.T, ts *testServer, amount int64) {
	t.Helper()
	token, err := parseAddress(rpcToken)
	require.NoError(t, err)
	funder, err := parseAddress(rpcFunder)
	require.NoError(t, err)
	require.NoError(t, ts.ledger.Mint(token, funder, big.NewInt(amount)))
}

func TestRPCLifecycle(t *testing.T) {
	ts := newTestServer(t, "")
	registerRPCFunder(t, ts)
	fundRPCFunder(t, ts, 1000)
	id := mintRPCMagnet(t, ts)
	require.Equal(t, uint64(0), id)

	var isFunder boolResult
	ts.result(t, "magnet_isFunder", addressParams{Address: rpcFunder}, &isFunder)
	require.True(t, isFunder.Value)
	ts.result(t, "magnet_isFunder", addressParams{Address: rpcStranger}, &isFunder)
	require.False(t, isFunder.Value)

	var count countResult
	ts.result(t, "magnet_getFunderCount", nil, &count)
	require.Equal(t, uint64(1), count.Count)
	ts.result(t, "magnet_getMagnetCount", nil, &count)
	require.Equal(t, uint64(1), count.Count)
	ts.result(t, "magnet_getMagnetCountByFunder", funderParams{Funder: rpcFunder}, &count)
	require.Equal(t, uint64(1), count.Count)

	var next struct {
		NextMagnetID uint64 `json:"nextMagnetId"`
	}
	ts.result(t, "magnet_nextMagnetId", nil, &next)
	require.Equal(t, uint64(1), next.NextMagnetID)

	var ids idListResult
	ts.result(t, "magnet_getMagnetIdsByFunder", funderParams{Funder: rpcFunder}, &ids)
	require.Equal(t, []uint64{0}, ids.IDs)
	ts.result(t, "magnet_getMagnetsByRecipient", recipientParams{Recipient: rpcRecipient}, &ids)
	require.Equal(t, []uint64{0}, ids.IDs)

	var admins struct {
		Admins []string `json:"admins"`
	}
	ts.result(t, "magnet_getAdminsByFunder", funderParams{Funder: rpcFunder}, &admins)
	require.Equal(t, []string{rpcAdmin}, admins.Admins)

	var isAdmin boolResult
	ts.result(t, "magnet_isAdmin", isAdminParams{Address: rpcAdmin, Funder: rpcFunder}, &isAdmin)
	require.True(t, isAdmin.Value)

	var ok okResult
	ts.result(t, "magnet_deposit", depositParams{Caller: rpcFunder, MagnetID: 0, Amount: "1000", Token: rpcToken}, &ok)
	require.True(t, ok.OK)

	var balance amountResult
	ts.result(t, "magnet_getBalance", magnetIDParams{ID: 0}, &balance)
	require.Equal(t, "1000", balance.Amount)

	var m magnetJSON
	ts.result(t, "magnet_get", magnetIDParams{ID: 0}, &m)
	require.Equal(t, rpcRecipient, m.Recipient)
	require.Equal(t, rpcToken, m.Token)
	require.Equal(t, "1000", m.Balance)
	require.Equal(t, "0", m.AmountWithdrawn)
	require.Equal(t, "Message 1", m.Message)

	// Advance past the cliff: 30 one-second periods vested.
	ts.now = testNow + 50
	var amount amountResult
	ts.result(t, "magnet_getVestedAmount", magnetIDParams{ID: 0}, &amount)
	require.Equal(t, "30", amount.Amount)
	ts.result(t, "magnet_getVestedAmountIgnoringCliff", magnetIDParams{ID: 0}, &amount)
	require.Equal(t, "30", amount.Amount)

	ts.result(t, "magnet_withdraw", withdrawParams{Caller: rpcRecipient, MagnetID: 0, Amount: "10"}, &ok)
	require.True(t, ok.OK)
	ts.result(t, "magnet_getBalance", magnetIDParams{ID: 0}, &balance)
	require.Equal(t, "990", balance.Amount)

	recipient, err := parseAddress(rpcRecipient)
	require.NoError(t, err)
	token, err := parseAddress(rpcToken)
	require.NoError(t, err)
	paid, err := ts.ledger.BalanceOf(token, recipient)
	require.NoError(t, err)
	require.Equal(t, int64(10), paid.Int64())
}

func TestRPCEngineErrorMessages(t *testing.T) {
	ts := newTestServer(t, "")

	resp, status := ts.call(t, "", "magnet_mint", mintParams{
		Caller:              rpcFunder,
		Recipient:           rpcRecipient,
		Token:               rpcToken,
		StartTime:           ts.now + 20,
		VestingPeriodLength: 1,
		AmountPerPeriod:     "1",
		CliffTime:           ts.now + 40,
		EndTime:             ts.now + 60,
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "Must register as funder first", resp.Error.Message)

	registerRPCFunder(t, ts)

	resp, status = ts.call(t, "", "magnet_mint", mintParams{
		Caller:              rpcFunder,
		Recipient:           rpcRecipient,
		Token:               rpcToken,
		StartTime:           ts.now - 10,
		VestingPeriodLength: 1,
		AmountPerPeriod:     "1",
		CliffTime:           ts.now + 40,
		EndTime:             ts.now + 60,
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Start time is in the past", resp.Error.Message)

	resp, status = ts.call(t, "", "magnet_deposit", depositParams{Caller: rpcFunder, MagnetID: 4, Amount: "10", Token: rpcToken})
	require.NotNil(t, resp.Error)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Magnet does not exist", resp.Error.Message)

	fundRPCFunder(t, ts, 100)
	id := mintRPCMagnet(t, ts)

	resp, status = ts.call(t, "", "magnet_deposit", depositParams{Caller: rpcStranger, MagnetID: id, Amount: "10", Token: rpcToken})
	require.NotNil(t, resp.Error)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "Only the funder can deposit to a magnet", resp.Error.Message)

	resp, status = ts.call(t, "", "magnet_withdraw", withdrawParams{Caller: rpcRecipient, MagnetID: id, Amount: "10"})
	require.NotNil(t, resp.Error)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "Available balance is zero", resp.Error.Message)
}

func TestRPCInvalidRequests(t *testing.T) {
	ts := newTestServer(t, "")

	resp, status := ts.call(t, "", "magnet_unknown", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	resp, status = ts.call(t, "", "magnet_get", "not-an-object")
	require.NotNil(t, resp.Error)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeMagnetInvalidParams, resp.Error.Code)

	resp, status = ts.call(t, "", "magnet_isFunder", addressParams{Address: "not-a-bech32-address"})
	require.NotNil(t, resp.Error)
	require.Equal(t, http.StatusBadRequest, status)

	httpResp, err := ts.srv.Client().Post(ts.srv.URL, "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer httpResp.Body.Close()
	decoded := &RPCResponse{}
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(decoded))
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeParseError, decoded.Error.Code)
}

func TestRPCAuth(t *testing.T) {
	ts := newTestServer(t, "test-token")

	params := registerFunderParams{Caller: rpcFunder, Name: "Funder 1"}

	resp, status := ts.call(t, "", "magnet_registerFunder", params)
	require.NotNil(t, resp.Error)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp, status = ts.call(t, "wrong-token", "magnet_registerFunder", params)
	require.NotNil(t, resp.Error)
	require.Equal(t, http.StatusUnauthorized, status)

	// Reads stay open without a token.
	var isFunder boolResult
	respRead, statusRead := ts.call(t, "", "magnet_isFunder", addressParams{Address: rpcFunder})
	require.Nil(t, respRead.Error)
	require.Equal(t, http.StatusOK, statusRead)
	raw, err := json.Marshal(respRead.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &isFunder))
	require.False(t, isFunder.Value)

	resp, status = ts.call(t, "test-token", "magnet_registerFunder", params)
	require.Nil(t, resp.Error)
	require.Equal(t, http.StatusOK, status)
}

package modules

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/0surface/Remittance/core"
	"github.com/0surface/Remittance/core/events"
	"github.com/0surface/Remittance/core/types"
	"github.com/0surface/Remittance/crypto"
	"github.com/0surface/Remittance/native/remittance"
	"github.com/0surface/Remittance/observability"
)

// RemittanceModule adapts a node to the remittance_* JSON-RPC namespace.
type RemittanceModule struct {
	node *core.Node
	log  *events.Log
}

func NewRemittanceModule(node *core.Node, log *events.Log) *RemittanceModule {
	return &RemittanceModule{node: node, log: log}
}

var errModuleOffline = &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "remittance module not initialised"}

type generateKeyParams struct {
	Recipient string `json:"recipient"`
	Password  string `json:"password"`
}

type generateSecretParams struct {
	Handler          string `json:"handler"`
	HandlerPassword  string `json:"handlerPassword"`
	ReceiverPassword string `json:"receiverPassword"`
}

type keyParams struct {
	Key string `json:"key"`
}

type addressParams struct {
	Address string `json:"address"`
}

type listEventsParams struct {
	After uint64 `json:"after,omitempty"`
	Limit *int   `json:"limit,omitempty"`
}

type KeyResult struct {
	Key string `json:"key"`
}

type SecretResult struct {
	HandlerKey   string `json:"handlerKey"`
	HashedSecret string `json:"hashedSecret"`
}

type EntryResult struct {
	Key       string `json:"key"`
	Depositor string `json:"depositor,omitempty"`
	Amount    string `json:"amount"`
	Deadline  int64  `json:"deadline"`
	Active    bool   `json:"active"`
}

type ConfigResult struct {
	Contract        string `json:"contract"`
	Owner           string `json:"owner"`
	Paused          bool   `json:"paused"`
	LockDuration    uint64 `json:"lockDuration"`
	MinLockDuration uint64 `json:"minLockDuration"`
	MaxLockDuration uint64 `json:"maxLockDuration"`
	Scheme          string `json:"scheme"`
	Hash            string `json:"hash"`
	ClaimExpires    bool   `json:"claimExpires"`
	Custody         string `json:"custody"`
	Outstanding     string `json:"outstanding"`
	Solvent         bool   `json:"solvent"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type ReceiptResult struct {
	Method string         `json:"method"`
	From   string         `json:"from"`
	Nonce  uint64         `json:"nonce"`
	Entry  *EntryResult   `json:"entry,omitempty"`
	Events []*types.Event `json:"events"`
}

func decode(raw json.RawMessage, out interface{}) *ModuleError {
	if len(raw) == 0 {
		return invalidParams("parameter object required", nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func (m *RemittanceModule) GenerateKey(raw json.RawMessage) (*KeyResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params generateKeyParams
	if modErr := decode(raw, &params); modErr != nil {
		return nil, modErr
	}
	recipient, err := parseOptionalAddress(params.Recipient)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	key, err := m.node.GenerateKey(recipient, params.Password)
	if err != nil {
		return nil, fromError(err)
	}
	return &KeyResult{Key: hexutil.Encode(key[:])}, nil
}

func (m *RemittanceModule) GenerateSecret(raw json.RawMessage) (*SecretResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params generateSecretParams
	if modErr := decode(raw, &params); modErr != nil {
		return nil, modErr
	}
	handler, err := parseOptionalAddress(params.Handler)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	secret, err := m.node.GenerateSecret(handler, params.HandlerPassword, params.ReceiverPassword)
	if err != nil {
		return nil, fromError(err)
	}
	return &SecretResult{
		HandlerKey:   hexutil.Encode(secret.HandlerKey[:]),
		HashedSecret: hexutil.Encode(secret.HashedSecret[:]),
	}, nil
}

// Submit applies a signed call. The call's method must match the RPC method
// it arrived on.
func (m *RemittanceModule) Submit(method string, raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var call types.Call
	if modErr := decode(raw, &call); modErr != nil {
		return nil, modErr
	}
	if call.Method != method {
		return nil, invalidParams(fmt.Sprintf("call method %q does not match %q", call.Method, method), nil)
	}
	receipt, err := m.node.Apply(&call)
	if err != nil {
		return nil, fromError(err)
	}
	m.refreshLedger()

	result := &ReceiptResult{
		Method: receipt.Method,
		From:   crypto.FromArray(receipt.From).String(),
		Nonce:  receipt.Nonce,
		Events: receipt.Events,
	}
	if receipt.Entry != nil {
		formatted := formatEntry(receipt.Entry)
		result.Entry = &formatted
	}
	if result.Events == nil {
		result.Events = []*types.Event{}
	}
	return result, nil
}

func (m *RemittanceModule) refreshLedger() {
	custody, outstanding, _ := m.node.Solvency()
	if custody != nil && outstanding != nil {
		observability.Ledger().SetSolvency(custody, outstanding)
	}
}

func (m *RemittanceModule) GetEntry(raw json.RawMessage) (*EntryResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params keyParams
	if modErr := decode(raw, &params); modErr != nil {
		return nil, modErr
	}
	key, err := ParseKey(params.Key)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	entry, err := m.node.Entry(key)
	if err != nil {
		return nil, fromError(err)
	}
	result := formatEntry(entry)
	return &result, nil
}

func (m *RemittanceModule) GetConfig() (*ConfigResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	cfg, err := m.node.Config()
	if err != nil {
		return nil, fromError(err)
	}
	custody, outstanding, solvencyErr := m.node.Solvency()
	if custody == nil || outstanding == nil {
		return nil, fromError(solvencyErr)
	}
	params := m.node.Params()
	return &ConfigResult{
		Contract:        crypto.FromArray(params.Contract).String(),
		Owner:           crypto.FromArray(cfg.Owner).String(),
		Paused:          cfg.Paused,
		LockDuration:    cfg.LockDuration,
		MinLockDuration: params.MinLockDuration,
		MaxLockDuration: params.MaxLockDuration,
		Scheme:          params.Scheme.String(),
		Hash:            params.Hash.String(),
		ClaimExpires:    params.ClaimExpires,
		Custody:         custody.Dec(),
		Outstanding:     outstanding.Dec(),
		Solvent:         solvencyErr == nil,
	}, nil
}

func (m *RemittanceModule) GetBalance(raw json.RawMessage) (*BalanceResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errModuleOffline
	}
	var params addressParams
	if modErr := decode(raw, &params); modErr != nil {
		return nil, modErr
	}
	addr, err := crypto.ParseAddress(params.Address)
	if err != nil {
		return nil, invalidParams(err.Error(), nil)
	}
	account, err := m.node.Account(addr)
	if err != nil {
		return nil, fromError(err)
	}
	return &BalanceResult{
		Address: crypto.FromArray(addr).String(),
		Balance: account.Balance.Dec(),
		Nonce:   account.Nonce,
	}, nil
}

// ListEvents pages through the retained event history. Records are returned
// in emission order starting after the given sequence number.
func (m *RemittanceModule) ListEvents(raw json.RawMessage) ([]events.Record, *ModuleError) {
	if m == nil || m.log == nil {
		return nil, errModuleOffline
	}
	var params listEventsParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, invalidParams("invalid parameter object", err.Error())
		}
	}
	limit := 100
	if params.Limit != nil {
		limit = *params.Limit
		if limit < 0 {
			limit = 0
		}
	}
	if limit == 0 {
		return []events.Record{}, nil
	}
	return m.log.List(params.After, limit), nil
}

func formatEntry(entry *remittance.Entry) EntryResult {
	result := EntryResult{
		Key:      hexutil.Encode(entry.Key[:]),
		Amount:   "0",
		Deadline: entry.Deadline,
		Active:   entry.Active(),
	}
	if entry.Amount != nil {
		result.Amount = entry.Amount.Dec()
	}
	if entry.Depositor != ([20]byte{}) {
		result.Depositor = crypto.FromArray(entry.Depositor).String()
	}
	return result
}

// ParseKey decodes a 0x-prefixed 32-byte ledger key.
func ParseKey(raw string) ([32]byte, error) {
	var key [32]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return key, fmt.Errorf("key is required")
	}
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		trimmed = "0x" + trimmed
	}
	decoded, err := hexutil.Decode(trimmed)
	if err != nil {
		return key, fmt.Errorf("invalid key: %w", err)
	}
	if len(decoded) != len(key) {
		return key, fmt.Errorf("key must be 32 bytes, got %d", len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}

// parseOptionalAddress lets the engine report a missing address with its own
// reason string.
func parseOptionalAddress(raw string) ([20]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return [20]byte{}, nil
	}
	return crypto.ParseAddress(raw)
}

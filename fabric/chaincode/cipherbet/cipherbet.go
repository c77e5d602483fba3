// -----------------------------------------------------------------------------
// Cipherbet_cc contract (Go, Fabric v3.1.1)
// Purpose: Implements a confidential peer-vs-peer wagering ledger in which
// Stakes and scores exist on-chain only as opaque ciphertext handles, with
// Batched match intake and asynchronous, proof-checked score decryption.
// Role in system: Write-path appends matches and encrypted score handles into
// A private data collection under a single open batch; settle-path commits an
// Ordered commitment hash, hands the handle sequence to an off-chain oracle,
// And accepts exactly one verified decryption result per request context.
// Key dependencies: Hyperledger Fabric contractapi/cid; an oracle key registry
// Chaincode ("oraclereg") for decryption proof keys; a player roster CC
// ("playerreg") for optional roster checks; private data collection "scores_pdc".
// -----------------------------------------------------------------------------

/*
cipherbet.go - Hyperledger Fabric chaincode for the CipherBet prototype.

This contract supports a batch lifecycle (one open batch at a time, monotonic
ids) and a confidentiality-preserving settlement flow:
- Score handles are stored in a private data collection under SCORE::<batch>::<idx>.
- Public match metadata is stored under MATCH::<batch>::<idx> with a score digest,
  never the handles themselves.
- DCTX::<txID> records one decryption request context per settlement attempt, so
  oracle callbacks can be replay-checked without trusting the gateway.

The chaincode does not expose any HTTP endpoints. A separate gateway/service is
expected to invoke these contract functions, subscribe to emitted events, and
drive the external decryption oracle.
*/
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/v2/pkg/cid"
	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
)

/* Keys & constants (single namespace for this chaincode) */

const (
	// Collections
	scoresPDC = "scores_pdc"

	// World state prefixes (public)
	keyOwner           = "OWNER"      // Owner identity string (cid.GetID)
	keySysState        = "SYS::STATE" // "active" / "paused"
	keyParams          = "PARAMS"     // Global Params JSON
	keyRolePrefix      = "ROLE::"     // ROLE::<account> → "1"/"0" submitter flag
	keyCooldownPrefix  = "CD::"       // CD::<category>::<account> → unix seconds of last action
	keyBatchSeq        = "BATCHSEQ"   // Monotonic batch counter (decimal, highest id = current)
	keyBatchPrefix     = "BATCH::"    // BATCH::<id> → BatchMeta
	keyMatchPrefix     = "MATCH::"    // MATCH::<id>::<idx> → MatchMeta (no score handles)
	keyDecryptPrefix   = "DCTX::"     // DCTX::<requestID> → DecryptionContext
	keyResultPrefix    = "RES::"      // RES::<batchID>::<requestID> → SettlementAnchor
	keyOracleKeyPrefix = "ORACLE::"   // ORACLE::<oracleID> → OracleKey (local copy)

	// PDC prefix (scores_pdc)
	keyScorePrefix = "SCORE::" // SCORE::<batchID>::<idx> → ScoreHandlesPDC
)

const (
	eventContractInitialized  = "ContractInitialized"
	eventOwnershipTransferred = "OwnershipTransferred"
	eventSubmitterGranted     = "SubmitterGranted"
	eventSubmitterRevoked     = "SubmitterRevoked"
	eventContractPaused       = "ContractPaused"
	eventContractUnpaused     = "ContractUnpaused"
	eventParamsUpdated        = "ParamsUpdated"
	eventOracleKeySet         = "OracleKeySet"

	eventBatchOpened         = "BatchOpened"
	eventBatchClosed         = "BatchClosed"
	eventMatchSubmitted      = "MatchSubmitted"
	eventScoresSubmitted     = "ScoresSubmitted"
	eventDecryptionRequested = "DecryptionRequested"
	eventDecryptionCompleted = "DecryptionCompleted"
)

const (
	stateActive = "active"
	statePaused = "paused"

	// Rate-limit categories. Match intake and settlement requests cool down
	// independently per account.
	categorySubmit  = "submit"
	categoryDecrypt = "decrypt"
)

// zeroScoreHandle seeds both score slots of every new match: 32 zero bytes in
// hex. A settlement over unscored matches decrypts it to plain zeros.
const zeroScoreHandle = "0000000000000000000000000000000000000000000000000000000000000000"

/* Error taxonomy */

// Sentinel errors for the gate and lifecycle checks. The gateway and the tests
// match these with errors.Is; wrapped messages carry the offending ids.
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrSystemPaused         = errors.New("system paused")
	ErrCooldownActive       = errors.New("cooldown active")
	ErrInvalidBatchState    = errors.New("invalid batch state")
	ErrBatchClosedOrMissing = errors.New("batch closed or does not exist")
	ErrMatchAlreadySettled  = errors.New("match already settled")
	ErrReplayAttempt        = errors.New("replay attempt")
	ErrStateMismatch        = errors.New("state mismatch")
	ErrInvalidProof         = errors.New("invalid proof")
)

/* Types & small data models */

// CipherBetContract implements the Fabric contract for the wagering prototype.
//
// Responsibilities:
// - Accept match and encrypted-score submissions into the current open batch.
// - Maintain public, index-addressed match metadata for auditing without ever
//   exposing ciphertext handles through events.
// - Coordinate asynchronous batch decryption against an external oracle and
//   commit exactly one verified result per request context.
type CipherBetContract struct{ contractapi.Contract }

// BatchMeta is the public per-batch record stored at BATCH::<id>.
// The highest id is the current batch; Open → Closed is one-way.
type BatchMeta struct {
	ID         uint64 `json:"id"`
	IsOpen     bool   `json:"isOpen"`
	MatchCount uint64 `json:"matchCount"`
	OpenedAt   string `json:"openedAt"` // RFC3339
	OpenedTx   string `json:"openedTx"`
	ClosedAt   string `json:"closedAt,omitempty"` // RFC3339
	ClosedTx   string `json:"closedTx,omitempty"`
}

// MatchMeta is the public per-match record stored at MATCH::<batchID>::<idx>.
//
// Stake handles are opaque ciphertext references and carry no plaintext.
// Score handles never appear here; they live in the scores collection and are
// summarised publicly only as ScoreDigest once the match is settled.
type MatchMeta struct {
	BatchID      uint64 `json:"batchID"`
	Index        uint64 `json:"index"`
	Player1      string `json:"player1"`
	Player2      string `json:"player2"`
	Stake1Handle string `json:"stake1Handle"`
	Stake2Handle string `json:"stake2Handle"`
	Settled      bool   `json:"settled"`
	ScoreDigest  string `json:"scoreDigest,omitempty"` // sha256(score1Handle|score2Handle)
	SubmittedAt  string `json:"submittedAt"`           // RFC3339
	SubmitTx     string `json:"submitTx"`
	SettleTx     string `json:"settleTx,omitempty"`
}

// ScoreHandlesPDC is the confidential score record kept in the scores private
// data collection. Only collection members ever see these handles.
type ScoreHandlesPDC struct {
	Score1Handle string `json:"score1Handle"`
	Score2Handle string `json:"score2Handle"`
	TxID         string `json:"txID"` // Tx that wrote this record
	SettledAt    string `json:"settledAt,omitempty"`
}

// Params contains runtime toggles and limits used by the contract.
//
// Values are stored on-chain (PARAMS) and merged over coded defaults, so a
// fresh ledger behaves sensibly before any SetParams call.
type Params struct {
	EmitEvents      bool  `json:"EMIT_EVENTS"`      // Default true: emit events
	CooldownSeconds int64 `json:"COOLDOWN_SECONDS"` // Per-account action spacing, default 30

	OracleCCName string `json:"ORACLE_CC_NAME"` // Oracle key registry CC, default "oraclereg"
	PlayerCCName string `json:"PLAYER_CC_NAME"` // Player roster CC, default "playerreg"

	ValidatePlayersOnSubmit bool `json:"VALIDATE_PLAYERS_ON_SUBMIT"` // Default false: roster check via cc2cc on SubmitMatch

	MaxHandleHexLen int `json:"MAX_HANDLE_HEX_LEN"` // Hex chars per ciphertext handle
	MaxAccountLen   int `json:"MAX_ACCOUNT_LEN"`    // Identity/player id length bound
}

/* Small helpers */

// callerID returns the stable Fabric identity string of the invoking client.
// Distinct enrolment certs yield distinct ids; re-issuing the same cert does not.
func callerID(ctx contractapi.TransactionContextInterface) (string, error) {
	id, err := cid.GetID(ctx.GetStub())
	if err != nil {
		return "", fmt.Errorf("caller identity: %w", err)
	}
	return id, nil
}

// getOwner reads the owner identity recorded by InitLedger ("" before init).
func getOwner(ctx contractapi.TransactionContextInterface) (string, error) {
	raw, err := ctx.GetStub().GetState(keyOwner)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// requireOwner gates the administrative surface. Admin calls stay available
// while the system is paused, otherwise a bad pause could never be undone.
func requireOwner(ctx contractapi.TransactionContextInterface) (string, error) {
	me, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	owner, err := getOwner(ctx)
	if err != nil {
		return "", err
	}
	if owner == "" {
		return "", fmt.Errorf("%w: ledger not initialised", ErrUnauthorized)
	}
	if me != owner {
		return "", fmt.Errorf("%w: owner required", ErrUnauthorized)
	}
	return me, nil
}

// isPaused reports the system switch. An absent key counts as active so the
// contract is usable right after InitLedger.
func isPaused(ctx contractapi.TransactionContextInterface) (bool, error) {
	raw, err := ctx.GetStub().GetState(keySysState)
	if err != nil {
		return false, err
	}
	return string(raw) == statePaused, nil
}

func requireActive(ctx contractapi.TransactionContextInterface) error {
	paused, err := isPaused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return ErrSystemPaused
	}
	return nil
}

// isSubmitter checks the role flag. Revocation writes "0" rather than deleting
// the key, so grant history stays visible to auditors.
func isSubmitter(ctx contractapi.TransactionContextInterface, account string) (bool, error) {
	raw, err := ctx.GetStub().GetState(keyRolePrefix + account)
	if err != nil {
		return false, err
	}
	return string(raw) == "1", nil
}

// requireSubmitter gates the write surface. The owner is NOT implicitly a
// submitter; grant the role explicitly where needed.
func requireSubmitter(ctx contractapi.TransactionContextInterface) (string, error) {
	me, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	ok, err := isSubmitter(ctx, me)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: submitter role required", ErrUnauthorized)
	}
	return me, nil
}

func cooldownKey(category, account string) string {
	return fmt.Sprintf("%s%s::%s", keyCooldownPrefix, category, account)
}

// checkCooldown enforces the per-account spacing for one category. It reads
// the last-action stamp and compares against the tx timestamp; it never writes.
func checkCooldown(ctx contractapi.TransactionContextInterface, category, account string) error {
	p, _ := getParams(ctx)
	if p.CooldownSeconds <= 0 {
		return nil
	}
	raw, err := ctx.GetStub().GetState(cooldownKey(category, account))
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	last, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// An unreadable stamp must not lock the account out forever.
		return nil
	}
	if elapsed := nowUnix(ctx) - last; elapsed < p.CooldownSeconds {
		return fmt.Errorf("%w: %s allowed again in %ds", ErrCooldownActive, category, p.CooldownSeconds-elapsed)
	}
	return nil
}

// stampCooldown records the tx timestamp as the account's last action in the
// category. Called only after the guarded operation's writes have been staged.
func stampCooldown(ctx contractapi.TransactionContextInterface, category, account string) error {
	return ctx.GetStub().PutState(cooldownKey(category, account), []byte(strconv.FormatInt(nowUnix(ctx), 10)))
}

// getParams reads the contract runtime parameters from world state.
// The values control optional checks (events, roster validation) and size limits.
func getParams(ctx contractapi.TransactionContextInterface) (*Params, error) {
	p := &Params{
		EmitEvents:      true, // <-- ON by default
		CooldownSeconds: 30,

		OracleCCName: "oraclereg",
		PlayerCCName: "playerreg",

		ValidatePlayersOnSubmit: false, // Roster check is opt-in; participants stay opaque by default

		MaxHandleHexLen: 128,
		MaxAccountLen:   256,
	}

	if b, err := ctx.GetStub().GetState(keyParams); err == nil && b != nil {
		var on Params
		if json.Unmarshal(b, &on) == nil {
			return &on, nil
		}
	}

	return p, nil
}

// nowRFC3339 returns the transaction timestamp as an RFC3339 UTC string.
func nowRFC3339(ctx contractapi.TransactionContextInterface) string {
	ts, _ := ctx.GetStub().GetTxTimestamp()
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC().Format(time.RFC3339)
}

// nowUnix returns the transaction timestamp in whole seconds; all rate-limit
// arithmetic uses this so endorsers agree on "now".
func nowUnix(ctx contractapi.TransactionContextInterface) int64 {
	ts, _ := ctx.GetStub().GetTxTimestamp()
	return ts.Seconds
}

// sha256Hex returns the SHA-256 hash of a byte slice, hex-encoded.
func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// sha256HexStr returns the SHA-256 hash of a string, hex-encoded.
func sha256HexStr(s string) string { return sha256Hex([]byte(s)) }

// MustJSON marshals v and ignores errors (used for events and small writes).
// Params: any.
// Return: JSON bytes (best effort).
func mustJSON(v any) []byte { b, _ := json.Marshal(v); return b }

// canonHandle normalises a ciphertext handle into canonical storage form:
// trimmed, lowercased, "0x" stripped, padded to even length. Handles are
// opaque identifiers, not integers, so leading zeros are preserved.
func canonHandle(s string, maxHexLen int) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(s, "0x") {
		s = s[2:]
	}
	if s == "" {
		return "", fmt.Errorf("handle empty")
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	if maxHexLen > 0 && len(s) > maxHexLen {
		return "", fmt.Errorf("handle exceeds %d hex chars", maxHexLen)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("handle not hex: %w", err)
	}
	return s, nil
}

// clampAccountID bounds variable-size identity inputs before they become keys.
// Params: account, maxLen.
// Return: trimmed account or error when empty/oversized.
func clampAccountID(account string, maxLen int) (string, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return "", fmt.Errorf("account empty")
	}
	if maxLen > 0 && len(account) > maxLen {
		return "", fmt.Errorf("account exceeds %d chars", maxLen)
	}
	return account, nil
}

// batchKey builds the world-state key for a batch (BATCH::<id>).
func batchKey(id uint64) string {
	return keyBatchPrefix + strconv.FormatUint(id, 10)
}

// matchKey builds the world-state key for a match (MATCH::<batchID>::<idx>).
func matchKey(batchID, idx uint64) string {
	return fmt.Sprintf("%s%d::%d", keyMatchPrefix, batchID, idx)
}

// scoreKey builds the private-data key for a match's score pair
// (SCORE::<batchID>::<idx>). The latest write wins inside the collection.
func scoreKey(batchID, idx uint64) string {
	return fmt.Sprintf("%s%d::%d", keyScorePrefix, batchID, idx)
}

// currentBatchID reads the monotonic batch counter (0 before the first open).
func currentBatchID(ctx contractapi.TransactionContextInterface) (uint64, error) {
	raw, err := ctx.GetStub().GetState(keyBatchSeq)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("batch sequence corrupt: %w", err)
	}
	return n, nil
}

func getBatch(ctx contractapi.TransactionContextInterface, id uint64) (*BatchMeta, error) {
	raw, err := ctx.GetStub().GetState(batchKey(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var bm BatchMeta
	if err := json.Unmarshal(raw, &bm); err != nil {
		return nil, fmt.Errorf("batch %d corrupt: %w", id, err)
	}
	return &bm, nil
}

func putBatch(ctx contractapi.TransactionContextInterface, bm *BatchMeta) error {
	return ctx.GetStub().PutState(batchKey(bm.ID), mustJSON(bm))
}

// requireCurrentOpen loads batchID and enforces that it is the current, still
// open batch. A stale or unknown id fails with ErrInvalidBatchState; the right
// id in the wrong lifecycle state fails with ErrBatchClosedOrMissing.
func requireCurrentOpen(ctx contractapi.TransactionContextInterface, batchID uint64) (*BatchMeta, error) {
	cur, err := currentBatchID(ctx)
	if err != nil {
		return nil, err
	}
	if batchID == 0 || batchID != cur {
		return nil, fmt.Errorf("%w: batch %d is not the current batch (current %d)", ErrInvalidBatchState, batchID, cur)
	}
	bm, err := getBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if bm == nil {
		return nil, fmt.Errorf("%w: batch %d", ErrBatchClosedOrMissing, batchID)
	}
	if !bm.IsOpen {
		return nil, fmt.Errorf("%w: batch %d is closed", ErrBatchClosedOrMissing, batchID)
	}
	return bm, nil
}

// HasPlayerViaCC queries playerreg.HasPlayer for roster membership (string bool).
// Params: ctx, playerCC, playerID.
// Return: true/false or error if cc2cc call fails.
func hasPlayerViaCC(ctx contractapi.TransactionContextInterface, playerCC, playerID string) (bool, error) {
	// Function name and args must match playerreg/playerreg.go
	args := [][]byte{[]byte("HasPlayer"), []byte(playerID)}
	resp := ctx.GetStub().InvokeChaincode(playerCC, args, "")
	if resp.Status != 200 {
		if len(resp.Message) > 0 {
			return false, fmt.Errorf("cc2cc HasPlayer failed: %s", resp.Message)
		}
		return false, fmt.Errorf("cc2cc HasPlayer failed with status %d", resp.Status)
	}
	// Contractapi returns JSON "true"/"false"
	payload := strings.TrimSpace(string(resp.Payload))
	payload = strings.Trim(payload, `"`)
	ok, _ := strconv.ParseBool(strings.ToLower(payload))
	return ok, nil
}

/* Admin / Setup */

// InitLedger is the one-shot bootstrap: it records the invoking identity as
// owner, marks the system active and zeroes the batch sequence. A second call
// fails, so ownership cannot be hijacked by re-running init.
func (c *CipherBetContract) InitLedger(ctx contractapi.TransactionContextInterface) error {
	raw, err := ctx.GetStub().GetState(keyOwner)
	if err != nil {
		return err
	}
	if raw != nil {
		return fmt.Errorf("%w: ledger already initialised", ErrUnauthorized)
	}

	me, err := callerID(ctx)
	if err != nil {
		return err
	}
	if err := ctx.GetStub().PutState(keyOwner, []byte(me)); err != nil {
		return err
	}
	if err := ctx.GetStub().PutState(keySysState, []byte(stateActive)); err != nil {
		return err
	}
	if err := ctx.GetStub().PutState(keyBatchSeq, []byte("0")); err != nil {
		return err
	}

	if p, _ := getParams(ctx); p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventContractInitialized, mustJSON(map[string]string{
			"owner": me, "txID": ctx.GetStub().GetTxID(), "time": nowRFC3339(ctx),
		}))
	}
	return nil
}

// TransferOwnership hands the admin surface to a new identity string.
// Transferring to the current owner is a silent no-op.
func (c *CipherBetContract) TransferOwnership(ctx contractapi.TransactionContextInterface, newOwner string) error {
	me, err := requireOwner(ctx)
	if err != nil {
		return err
	}
	p, _ := getParams(ctx)
	newOwner, err = clampAccountID(newOwner, p.MaxAccountLen)
	if err != nil {
		return err
	}
	if newOwner == me {
		return nil
	}
	if err := ctx.GetStub().PutState(keyOwner, []byte(newOwner)); err != nil {
		return err
	}
	if p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventOwnershipTransferred, mustJSON(map[string]string{
			"from": me, "to": newOwner, "time": nowRFC3339(ctx),
		}))
	}
	return nil
}

// GrantSubmitter flips the submitter role on for an account.
// Granting an account that already holds the role succeeds without an event.
func (c *CipherBetContract) GrantSubmitter(ctx contractapi.TransactionContextInterface, account string) error {
	if _, err := requireOwner(ctx); err != nil {
		return err
	}
	p, _ := getParams(ctx)
	account, err := clampAccountID(account, p.MaxAccountLen)
	if err != nil {
		return err
	}
	already, err := isSubmitter(ctx, account)
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	if err := ctx.GetStub().PutState(keyRolePrefix+account, []byte("1")); err != nil {
		return err
	}
	if p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventSubmitterGranted, mustJSON(map[string]string{
			"account": account, "time": nowRFC3339(ctx),
		}))
	}
	return nil
}

// RevokeSubmitter flips the submitter role off. The role key is overwritten
// with "0", never deleted, and revoking a non-submitter is a silent no-op.
func (c *CipherBetContract) RevokeSubmitter(ctx contractapi.TransactionContextInterface, account string) error {
	if _, err := requireOwner(ctx); err != nil {
		return err
	}
	p, _ := getParams(ctx)
	account, err := clampAccountID(account, p.MaxAccountLen)
	if err != nil {
		return err
	}
	held, err := isSubmitter(ctx, account)
	if err != nil {
		return err
	}
	if !held {
		return nil
	}
	if err := ctx.GetStub().PutState(keyRolePrefix+account, []byte("0")); err != nil {
		return err
	}
	if p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventSubmitterRevoked, mustJSON(map[string]string{
			"account": account, "time": nowRFC3339(ctx),
		}))
	}
	return nil
}

// Pause halts the whole submit/settle surface; only owner admin calls keep
// working. Re-pausing a paused system succeeds without a second event.
func (c *CipherBetContract) Pause(ctx contractapi.TransactionContextInterface) error {
	me, err := requireOwner(ctx)
	if err != nil {
		return err
	}
	paused, err := isPaused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return nil
	}
	if err := ctx.GetStub().PutState(keySysState, []byte(statePaused)); err != nil {
		return err
	}
	if p, _ := getParams(ctx); p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventContractPaused, mustJSON(map[string]string{
			"by": me, "time": nowRFC3339(ctx),
		}))
	}
	return nil
}

// Unpause reactivates the submit/settle surface. Idempotent like Pause.
func (c *CipherBetContract) Unpause(ctx contractapi.TransactionContextInterface) error {
	me, err := requireOwner(ctx)
	if err != nil {
		return err
	}
	paused, err := isPaused(ctx)
	if err != nil {
		return err
	}
	if !paused {
		return nil
	}
	if err := ctx.GetStub().PutState(keySysState, []byte(stateActive)); err != nil {
		return err
	}
	if p, _ := getParams(ctx); p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventContractUnpaused, mustJSON(map[string]string{
			"by": me, "time": nowRFC3339(ctx),
		}))
	}
	return nil
}

// SetCooldownSeconds adjusts the rate-limit window; shorthand for SetParams.
// Takes effect for the very next cooldown check.
func (c *CipherBetContract) SetCooldownSeconds(ctx contractapi.TransactionContextInterface, seconds int64) error {
	if seconds < 0 {
		return fmt.Errorf("cooldown seconds must be >= 0")
	}
	return c.SetParams(ctx, fmt.Sprintf(`{"COOLDOWN_SECONDS":%d}`, seconds))
}

// SetParams writes runtime parameters (feature flags and limits) to world state.
// Updates are JSON-merged over current values, so partial updates are safe.
func (c *CipherBetContract) SetParams(ctx contractapi.TransactionContextInterface, paramsJSON string) error {
	if _, err := requireOwner(ctx); err != nil {
		return err
	}
	cur, err := getParams(ctx)
	if err != nil {
		return err
	}

	jsCur, _ := json.Marshal(cur)
	var merged map[string]any
	_ = json.Unmarshal(jsCur, &merged)

	var upd map[string]any
	if err := json.Unmarshal([]byte(paramsJSON), &upd); err != nil {
		return fmt.Errorf("bad params json: %w", err)
	}
	for k, v := range upd {
		merged[k] = v
	}

	js, _ := json.Marshal(merged)
	if err := ctx.GetStub().PutState(keyParams, js); err != nil {
		return err
	}

	if params, _ := getParams(ctx); params.EmitEvents {
		keys := make([]string, 0, len(upd))
		for k := range upd {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		_ = ctx.GetStub().SetEvent(eventParamsUpdated, mustJSON(map[string]any{
			"hash": sha256Hex(js),
			"keys": keys,
			"time": nowRFC3339(ctx),
		}))
	}
	return nil
}

// GetParams reads back the stored runtime parameters.
func (c *CipherBetContract) GetParams(ctx contractapi.TransactionContextInterface) (*Params, error) {
	return getParams(ctx)
}

/* Batch lifecycle */

// OpenBatch advances the batch sequence and opens a fresh batch. Past the
// owner gate it never fails on lifecycle grounds: a lingering open batch is
// auto-closed first (with its own BatchClosed event) so at most one batch is
// ever open. Returns the new batch id.
func (c *CipherBetContract) OpenBatch(ctx contractapi.TransactionContextInterface) (uint64, error) {
	if _, err := requireOwner(ctx); err != nil {
		return 0, err
	}

	cur, err := currentBatchID(ctx)
	if err != nil {
		return 0, err
	}

	txID := ctx.GetStub().GetTxID()
	when := nowRFC3339(ctx)
	p, _ := getParams(ctx)

	if cur > 0 {
		prev, err := getBatch(ctx, cur)
		if err != nil {
			return 0, err
		}
		if prev != nil && prev.IsOpen {
			prev.IsOpen = false
			prev.ClosedAt = when
			prev.ClosedTx = txID
			if err := putBatch(ctx, prev); err != nil {
				return 0, err
			}
			if p.EmitEvents {
				_ = ctx.GetStub().SetEvent(eventBatchClosed, mustJSON(map[string]any{
					"batchID": prev.ID, "matches": prev.MatchCount, "auto": true, "time": when,
				}))
			}
		}
	}

	next := cur + 1
	if err := ctx.GetStub().PutState(keyBatchSeq, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, err
	}
	bm := &BatchMeta{ID: next, IsOpen: true, OpenedAt: when, OpenedTx: txID}
	if err := putBatch(ctx, bm); err != nil {
		return 0, err
	}

	if p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventBatchOpened, mustJSON(map[string]any{
			"batchID": next, "time": when,
		}))
	}
	return next, nil
}

// CloseBatch flips the current batch to Closed, a one-way transition.
// A non-current id fails with ErrInvalidBatchState; the current id already
// closed (or its meta missing) fails with ErrBatchClosedOrMissing.
func (c *CipherBetContract) CloseBatch(ctx contractapi.TransactionContextInterface, batchID uint64) error {
	if _, err := requireOwner(ctx); err != nil {
		return err
	}

	cur, err := currentBatchID(ctx)
	if err != nil {
		return err
	}
	if batchID == 0 || batchID != cur {
		return fmt.Errorf("%w: batch %d is not the current batch (current %d)", ErrInvalidBatchState, batchID, cur)
	}
	bm, err := getBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if bm == nil || !bm.IsOpen {
		return fmt.Errorf("%w: batch %d", ErrBatchClosedOrMissing, batchID)
	}

	bm.IsOpen = false
	bm.ClosedAt = nowRFC3339(ctx)
	bm.ClosedTx = ctx.GetStub().GetTxID()
	if err := putBatch(ctx, bm); err != nil {
		return err
	}

	if p, _ := getParams(ctx); p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventBatchClosed, mustJSON(map[string]any{
			"batchID": bm.ID, "matches": bm.MatchCount, "auto": false, "time": bm.ClosedAt,
		}))
	}
	return nil
}

/* Hot path */

// SubmitMatch appends a match to the current open batch.
//
// Key properties:
// - Gate order is fixed: pause, then submitter role, then submit cooldown,
//   then batch state. Unauthorized always wins over cooldown/state errors.
// - Both score slots are seeded with the zero handle in the collection, so a
//   settlement request over a partially scored batch is well defined.
// - Returns the zero-based index assigned to the match.
func (c *CipherBetContract) SubmitMatch(
	ctx contractapi.TransactionContextInterface,
	batchID uint64,
	player1, player2 string,
	stake1Handle, stake2Handle string,
) (uint64, error) {

	// 1) Gates: pause, role, cooldown (in that order)
	if err := requireActive(ctx); err != nil {
		return 0, err
	}
	me, err := requireSubmitter(ctx)
	if err != nil {
		return 0, err
	}
	if err := checkCooldown(ctx, categorySubmit, me); err != nil {
		return 0, err
	}

	// 2) Input hygiene (cheap, before any state writes)
	p, _ := getParams(ctx)
	player1, err = clampAccountID(player1, p.MaxAccountLen)
	if err != nil {
		return 0, fmt.Errorf("player1: %w", err)
	}
	player2, err = clampAccountID(player2, p.MaxAccountLen)
	if err != nil {
		return 0, fmt.Errorf("player2: %w", err)
	}
	if player1 == player2 {
		return 0, fmt.Errorf("players must differ")
	}
	s1, err := canonHandle(stake1Handle, p.MaxHandleHexLen)
	if err != nil {
		return 0, fmt.Errorf("stake1: %w", err)
	}
	s2, err := canonHandle(stake2Handle, p.MaxHandleHexLen)
	if err != nil {
		return 0, fmt.Errorf("stake2: %w", err)
	}

	// 3) Batch must be the current open one
	bm, err := requireCurrentOpen(ctx, batchID)
	if err != nil {
		return 0, err
	}

	// 4) Optional roster check via the player registry
	if p.ValidatePlayersOnSubmit {
		for _, pl := range []string{player1, player2} {
			ok, err := hasPlayerViaCC(ctx, p.PlayerCCName, pl)
			if err != nil {
				return 0, err
			}
			if !ok {
				return 0, fmt.Errorf("player %s not in roster", pl)
			}
		}
	}

	// 5) Append match meta (WS) + seed the zero score pair (PDC)
	idx := bm.MatchCount
	txID := ctx.GetStub().GetTxID()
	when := nowRFC3339(ctx)
	mm := &MatchMeta{
		BatchID: batchID, Index: idx,
		Player1: player1, Player2: player2,
		Stake1Handle: s1, Stake2Handle: s2,
		SubmittedAt: when, SubmitTx: txID,
	}
	if err := ctx.GetStub().PutState(matchKey(batchID, idx), mustJSON(mm)); err != nil {
		return 0, err
	}
	seed := &ScoreHandlesPDC{Score1Handle: zeroScoreHandle, Score2Handle: zeroScoreHandle, TxID: txID}
	if err := ctx.GetStub().PutPrivateData(scoresPDC, scoreKey(batchID, idx), mustJSON(seed)); err != nil {
		return 0, err
	}

	bm.MatchCount++
	if err := putBatch(ctx, bm); err != nil {
		return 0, err
	}

	// 6) Stamp the rate limiter only after the writes are staged
	if err := stampCooldown(ctx, categorySubmit, me); err != nil {
		return 0, err
	}

	// 7) Event (identifiers only; stake/score handles never ride on events)
	if p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventMatchSubmitted, mustJSON(map[string]any{
			"batchID": batchID, "index": idx,
			"player1": player1, "player2": player2,
			"txID": txID, "time": when,
		}))
	}
	return idx, nil
}

// SubmitEncryptedScores settles one match of the current open batch with its
// final encrypted score pair. A match settles exactly once; the collection
// record is replaced and the public meta gets a digest of the handles, never
// the handles themselves.
func (c *CipherBetContract) SubmitEncryptedScores(
	ctx contractapi.TransactionContextInterface,
	batchID, matchIdx uint64,
	score1Handle, score2Handle string,
) error {

	// 1) Gates: pause, role, cooldown (same order as SubmitMatch)
	if err := requireActive(ctx); err != nil {
		return err
	}
	me, err := requireSubmitter(ctx)
	if err != nil {
		return err
	}
	if err := checkCooldown(ctx, categorySubmit, me); err != nil {
		return err
	}

	// 2) Handle hygiene
	p, _ := getParams(ctx)
	s1, err := canonHandle(score1Handle, p.MaxHandleHexLen)
	if err != nil {
		return fmt.Errorf("score1: %w", err)
	}
	s2, err := canonHandle(score2Handle, p.MaxHandleHexLen)
	if err != nil {
		return fmt.Errorf("score2: %w", err)
	}

	// 3) Batch/match state
	bm, err := requireCurrentOpen(ctx, batchID)
	if err != nil {
		return err
	}
	if matchIdx >= bm.MatchCount {
		return fmt.Errorf("%w: batch %d has no match %d", ErrInvalidBatchState, batchID, matchIdx)
	}
	raw, err := ctx.GetStub().GetState(matchKey(batchID, matchIdx))
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: batch %d has no match %d", ErrInvalidBatchState, batchID, matchIdx)
	}
	var mm MatchMeta
	if err := json.Unmarshal(raw, &mm); err != nil {
		return fmt.Errorf("match %d/%d corrupt: %w", batchID, matchIdx, err)
	}
	if mm.Settled {
		return fmt.Errorf("%w: batch %d match %d", ErrMatchAlreadySettled, batchID, matchIdx)
	}

	// 4) Replace the collection record, then flip the public meta
	txID := ctx.GetStub().GetTxID()
	when := nowRFC3339(ctx)
	sh := &ScoreHandlesPDC{Score1Handle: s1, Score2Handle: s2, TxID: txID, SettledAt: when}
	if err := ctx.GetStub().PutPrivateData(scoresPDC, scoreKey(batchID, matchIdx), mustJSON(sh)); err != nil {
		return err
	}

	mm.Settled = true
	mm.ScoreDigest = sha256HexStr(s1 + "|" + s2)
	mm.SettleTx = txID
	if err := ctx.GetStub().PutState(matchKey(batchID, matchIdx), mustJSON(&mm)); err != nil {
		return err
	}

	if err := stampCooldown(ctx, categorySubmit, me); err != nil {
		return err
	}

	// 5) Event: digest only, never the handles
	if p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventScoresSubmitted, mustJSON(map[string]any{
			"batchID": batchID, "index": matchIdx, "scoreDigest": mm.ScoreDigest,
			"txID": txID, "time": when,
		}))
	}
	return nil
}

/* Read surface */

// GetCurrentBatchID returns the highest batch id issued so far (0 when none).
func (c *CipherBetContract) GetCurrentBatchID(ctx contractapi.TransactionContextInterface) (uint64, error) {
	return currentBatchID(ctx)
}

// GetBatch returns the public metadata for one batch.
func (c *CipherBetContract) GetBatch(ctx contractapi.TransactionContextInterface, batchID uint64) (*BatchMeta, error) {
	bm, err := getBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if bm == nil {
		return nil, fmt.Errorf("%w: batch %d", ErrBatchClosedOrMissing, batchID)
	}
	return bm, nil
}

// GetMatch returns the public metadata for one match (no score handles).
func (c *CipherBetContract) GetMatch(ctx contractapi.TransactionContextInterface, batchID, matchIdx uint64) (*MatchMeta, error) {
	raw, err := ctx.GetStub().GetState(matchKey(batchID, matchIdx))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: batch %d has no match %d", ErrInvalidBatchState, batchID, matchIdx)
	}
	var mm MatchMeta
	if err := json.Unmarshal(raw, &mm); err != nil {
		return nil, fmt.Errorf("match %d/%d corrupt: %w", batchID, matchIdx, err)
	}
	return &mm, nil
}

// GetOwner returns the owner identity string recorded by InitLedger.
func (c *CipherBetContract) GetOwner(ctx contractapi.TransactionContextInterface) (string, error) {
	owner, err := getOwner(ctx)
	if err != nil {
		return "", err
	}
	if owner == "" {
		return "", fmt.Errorf("ledger not initialised")
	}
	return owner, nil
}

// IsSubmitter reports whether an account currently holds the submitter role.
func (c *CipherBetContract) IsSubmitter(ctx contractapi.TransactionContextInterface, account string) (bool, error) {
	return isSubmitter(ctx, strings.TrimSpace(account))
}

// WhoAmI echoes the caller's resolved identity string; useful when wiring
// GrantSubmitter/TransferOwnership arguments from client tooling.
func (c *CipherBetContract) WhoAmI(ctx contractapi.TransactionContextInterface) (string, error) {
	return callerID(ctx)
}

/* Health */

// Ping is a simple health check used by deployment tooling and test harnesses.
func (c *CipherBetContract) Ping(ctx contractapi.TransactionContextInterface) (string, error) {
	return "OK:" + ctx.GetStub().GetTxID(), nil
}

func main() {
	cc, err := contractapi.NewChaincode(new(CipherBetContract))
	if err != nil {
		panic(err)
	}
	if err := cc.Start(); err != nil {
		panic(err)
	}
}

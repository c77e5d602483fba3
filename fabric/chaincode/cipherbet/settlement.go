/*
settlement.go - asynchronous batch decryption for the CipherBet contract.

RequestBatchSettlement freezes the ordered score-handle sequence of a closed
batch behind a commitment hash and hands identifiers to the gateway, which
drives the off-chain decryption oracle. OnDecryptionResult is the adversarial
boundary on the way back: the callback runs a fixed validation ladder (replay,
then state, then proof) with no side effects until the final commit, so a
request context settles exactly once no matter how often the gateway retries.
*/
package main

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
)

const (
	// Domain separation tags. The channel id is mixed in as well, so two
	// deployments can never produce interchangeable hashes or proofs.
	settleDomainTag = "cipherbet/settle/v1"
	proofDomainTag  = "cipherbet/decrypt-proof/v1"

	// Supported oracle proof scheme and its signature size.
	proofScheme   = "schnorr-blake256-v1"
	schnorrSigLen = 64

	oracleStatusActive  = "A"
	oracleStatusRevoked = "X"
)

/* Coordinator data models */

// DecryptionContext is the per-request settlement record at DCTX::<requestID>.
//
// Requested → Completed is one-way: Processed flips exactly once, on the first
// callback that survives the full validation ladder. Re-requesting the same
// batch creates independent contexts that share the commitment hash while the
// underlying records are unchanged.
type DecryptionContext struct {
	RequestID      string `json:"requestID"` // Tx id of the requesting transaction
	BatchID        uint64 `json:"batchID"`
	CommitmentHash string `json:"commitmentHash"` // Over the ordered handle sequence
	HandleCount    uint64 `json:"handleCount"`    // 2 per match at request time
	Processed      bool   `json:"processed"`
	RequestedAt    string `json:"requestedAt"` // RFC3339
	ProcessedAt    string `json:"processedAt,omitempty"`
	Forced         bool   `json:"forced,omitempty"` // Re-issued by the owner via ForceResettle
}

// SettlementAnchor is the public on-chain anchor for one committed decryption.
//
// It binds:
// - the decoded plaintext scores (pairs in match index order),
// - the commitment hash the oracle answered, and
// - a digest of the proof envelope for off-chain audit linkage.
type SettlementAnchor struct {
	BatchID        uint64   `json:"batchID"`
	RequestID      string   `json:"requestID"`
	Time           string   `json:"time"` // RFC3339
	Scores         []uint64 `json:"scores"`
	CommitmentHash string   `json:"commitmentHash"`
	ProofDigest    string   `json:"proofDigest"`
	Forced         bool     `json:"forced,omitempty"`
	TxID           string   `json:"txID"`
}

// OracleKey is the locally cached verification key for one decryption oracle.
// Proofs verify only against status "A"; refreshing an "X" record from the
// registry is how revocation propagates here.
type OracleKey struct {
	OracleID  string `json:"oracleID"`
	PubKeyHex string `json:"pubKeyHex"` // 33-byte compressed secp256k1, hex
	Scheme    string `json:"scheme"`
	Status    string `json:"status"` // "A" active / "X" revoked
	UpdatedAt string `json:"updatedAt"`
	TxID      string `json:"txID"`
}

// decryptProof is the oracle's authorisation envelope for one callback.
type decryptProof struct {
	OracleID string `json:"oracleID"`
	Scheme   string `json:"scheme"`
	SigHex   string `json:"sigHex"`
}

// BatchScoreHandles is the gateway-facing view of a batch's ordered handle
// sequence. Served from the collection, so only member peers can materialise it.
type BatchScoreHandles struct {
	BatchID        uint64   `json:"batchID"`
	Handles        []string `json:"handles"` // 2 per match, match index order
	CommitmentHash string   `json:"commitmentHash"`
}

/* Commitment plumbing */

// commitmentHash computes the settle commitment over an ordered handle
// sequence: sha256(tag | channel | batchID | count | h0 | h1 | ...).
// Pure function of its inputs; request and callback must agree byte for byte.
func commitmentHash(channelID string, batchID uint64, handles []string) string {
	var buf bytes.Buffer
	buf.WriteString(settleDomainTag)
	buf.WriteByte('|')
	buf.WriteString(channelID)
	buf.WriteByte('|')
	buf.WriteString(strconv.FormatUint(batchID, 10))
	buf.WriteByte('|')
	buf.WriteString(strconv.Itoa(len(handles)))
	for _, h := range handles {
		buf.WriteByte('|')
		buf.WriteString(h)
	}
	return sha256Hex(buf.Bytes())
}

// collectScoreHandles reads the score pair of every match in the batch from
// the collection, in match index order. A missing record is a hard error:
// SubmitMatch seeds every slot, so a gap means the collection was tampered with.
func collectScoreHandles(ctx contractapi.TransactionContextInterface, bm *BatchMeta) ([]string, error) {
	handles := make([]string, 0, 2*bm.MatchCount)
	for idx := uint64(0); idx < bm.MatchCount; idx++ {
		raw, err := ctx.GetStub().GetPrivateData(scoresPDC, scoreKey(bm.ID, idx))
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, fmt.Errorf("score record missing for batch %d match %d", bm.ID, idx)
		}
		var sh ScoreHandlesPDC
		if err := json.Unmarshal(raw, &sh); err != nil {
			return nil, fmt.Errorf("score record corrupt for batch %d match %d: %w", bm.ID, idx, err)
		}
		handles = append(handles, sh.Score1Handle, sh.Score2Handle)
	}
	return handles, nil
}

// decodePlaintext parses the oracle plaintext: hex encoding exactly 8 bytes
// per handle, big-endian. Shape failures count as proof failures.
func decodePlaintext(plaintextHex string, handleCount uint64) ([]byte, error) {
	s := strings.ToLower(strings.TrimSpace(plaintextHex))
	if strings.HasPrefix(s, "0x") {
		s = s[2:]
	}
	pt, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: plaintext not hex", ErrInvalidProof)
	}
	if uint64(len(pt)) != 8*handleCount {
		return nil, fmt.Errorf("%w: plaintext is %d bytes, want %d", ErrInvalidProof, len(pt), 8*handleCount)
	}
	return pt, nil
}

// decodeScores splits verified plaintext into one uint64 per handle.
func decodeScores(pt []byte) []uint64 {
	out := make([]uint64, 0, len(pt)/8)
	for off := 0; off+8 <= len(pt); off += 8 {
		out = append(out, binary.BigEndian.Uint64(pt[off:off+8]))
	}
	return out
}

// proofDigest binds a callback to this channel, request, commitment and
// plaintext. BLAKE-256 to match the oracle's EC-Schnorr stack.
func proofDigest(channelID, requestID, commitHash string, plaintext []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(proofDomainTag)
	buf.WriteByte('|')
	buf.WriteString(channelID)
	buf.WriteByte('|')
	buf.WriteString(requestID)
	buf.WriteByte('|')
	buf.WriteString(commitHash)
	buf.WriteByte('|')
	buf.Write(plaintext)
	h := blake256.Sum256(buf.Bytes())
	return h[:]
}

// loadOracleKey reads a cached oracle key ("" or unknown id → nil, no error).
func loadOracleKey(ctx contractapi.TransactionContextInterface, oracleID string) (*OracleKey, error) {
	if oracleID == "" {
		return nil, nil
	}
	raw, err := ctx.GetStub().GetState(keyOracleKeyPrefix + oracleID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var rec OracleKey
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("oracle key %q corrupt: %w", oracleID, err)
	}
	return &rec, nil
}

// verifyDecryptionProof checks the proof envelope end to end. Every failure
// mode collapses to ErrInvalidProof so a probing caller learns nothing about
// which part of the envelope was wrong.
func verifyDecryptionProof(ctx contractapi.TransactionContextInterface, dc *DecryptionContext, plaintext []byte, proofJSON string) error {
	var pr decryptProof
	if err := json.Unmarshal([]byte(proofJSON), &pr); err != nil {
		return fmt.Errorf("%w: bad proof json", ErrInvalidProof)
	}
	if pr.Scheme != proofScheme {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProof, pr.Scheme)
	}

	rec, err := loadOracleKey(ctx, strings.TrimSpace(pr.OracleID))
	if err != nil {
		return err
	}
	if rec == nil || rec.Status != oracleStatusActive {
		return fmt.Errorf("%w: oracle key unknown or revoked", ErrInvalidProof)
	}
	pubBytes, err := hex.DecodeString(rec.PubKeyHex)
	if err != nil {
		return fmt.Errorf("%w: stored oracle key undecodable", ErrInvalidProof)
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return fmt.Errorf("%w: stored oracle key not a curve point", ErrInvalidProof)
	}

	sigBytes, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(pr.SigHex)))
	if err != nil || len(sigBytes) != schnorrSigLen {
		return fmt.Errorf("%w: signature must be %d hex-encoded bytes", ErrInvalidProof, schnorrSigLen)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: signature unparseable", ErrInvalidProof)
	}

	digest := proofDigest(ctx.GetStub().GetChannelID(), dc.RequestID, dc.CommitmentHash, plaintext)
	if !sig.Verify(digest, pub) {
		return fmt.Errorf("%w: signature check failed", ErrInvalidProof)
	}
	return nil
}

// resultKey builds the anchor key for one committed request (RES::<batch>::<req>).
func resultKey(batchID uint64, requestID string) string {
	return fmt.Sprintf("%s%d::%s", keyResultPrefix, batchID, requestID)
}

// CallRegistry is a safe wrapper to call read-only functions in companion CCs.
// Params: ctx, registry CC name, function, args.
// Return: raw payload bytes or error on non-200 or empty payload.
func callRegistry(ctx contractapi.TransactionContextInterface, registryCC, fcn string, args ...string) ([]byte, error) {
	if ctx == nil {
		return nil, fmt.Errorf("cc2cc %s: nil ctx", fcn)
	}
	s := ctx.GetStub()
	if s == nil {
		return nil, fmt.Errorf("cc2cc %s: nil stub", fcn)
	}

	// Guard against typed-nil stub (interface is non-nil but underlying pointer is nil).
	if rv := reflect.ValueOf(s); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, fmt.Errorf("cc2cc %s: nil underlying stub", fcn)
	}

	argv := make([][]byte, 0, 1+len(args))
	argv = append(argv, []byte(fcn))
	for _, a := range args {
		argv = append(argv, []byte(a))
	}

	resp := s.InvokeChaincode(registryCC, argv, "") // "" => same channel

	if resp.Status != 200 || len(resp.Payload) == 0 {
		return nil, fmt.Errorf("cc2cc %s(%s) status=%d message=%q",
			fcn, strings.Join(args, ","), resp.Status, resp.Message)
	}
	return resp.Payload, nil
}

/* Settle path */

// RequestBatchSettlement opens a decryption request for the current batch.
// The batch must already be closed and non-empty; the request freezes the
// commitment hash over the handle sequence as it stands right now.
// Returns the request id (this transaction's id).
func (c *CipherBetContract) RequestBatchSettlement(ctx contractapi.TransactionContextInterface, batchID uint64) (string, error) {
	// 1) Gates: pause, role, decrypt cooldown (independent of submit)
	if err := requireActive(ctx); err != nil {
		return "", err
	}
	me, err := requireSubmitter(ctx)
	if err != nil {
		return "", err
	}
	if err := checkCooldown(ctx, categoryDecrypt, me); err != nil {
		return "", err
	}

	// 2) Batch must be the current one, closed, with at least one match
	cur, err := currentBatchID(ctx)
	if err != nil {
		return "", err
	}
	if batchID == 0 || batchID != cur {
		return "", fmt.Errorf("%w: batch %d is not the current batch (current %d)", ErrInvalidBatchState, batchID, cur)
	}
	bm, err := getBatch(ctx, batchID)
	if err != nil {
		return "", err
	}
	if bm == nil {
		return "", fmt.Errorf("%w: batch %d", ErrBatchClosedOrMissing, batchID)
	}
	if bm.IsOpen {
		return "", fmt.Errorf("%w: batch %d is still open", ErrInvalidBatchState, batchID)
	}
	if bm.MatchCount == 0 {
		return "", fmt.Errorf("%w: batch %d has no matches", ErrInvalidBatchState, batchID)
	}

	// 3) Freeze the context, then stamp the limiter
	requestID, err := c.openDecryptionContext(ctx, bm, false)
	if err != nil {
		return "", err
	}
	if err := stampCooldown(ctx, categoryDecrypt, me); err != nil {
		return "", err
	}
	return requestID, nil
}

// openDecryptionContext stores a fresh request context for a closed batch and
// announces it. Re-requests are legal: each context is independent, carries
// the same hash while the batch is unchanged, and settles exactly once.
func (c *CipherBetContract) openDecryptionContext(ctx contractapi.TransactionContextInterface, bm *BatchMeta, forced bool) (string, error) {
	handles, err := collectScoreHandles(ctx, bm)
	if err != nil {
		return "", err
	}

	requestID := ctx.GetStub().GetTxID()
	when := nowRFC3339(ctx)
	dc := &DecryptionContext{
		RequestID:      requestID,
		BatchID:        bm.ID,
		CommitmentHash: commitmentHash(ctx.GetStub().GetChannelID(), bm.ID, handles),
		HandleCount:    uint64(len(handles)),
		RequestedAt:    when,
		Forced:         forced,
	}
	if err := ctx.GetStub().PutState(keyDecryptPrefix+requestID, mustJSON(dc)); err != nil {
		return "", err
	}

	// Identifiers only: the gateway pulls the handle sequence itself via
	// GetBatchScoreHandles on a collection-member peer.
	if p, _ := getParams(ctx); p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventDecryptionRequested, mustJSON(map[string]any{
			"requestID": requestID, "batchID": bm.ID,
			"handleCount": dc.HandleCount, "commitmentHash": dc.CommitmentHash,
			"forced": forced, "time": when,
		}))
	}
	return requestID, nil
}

// OnDecryptionResult is the oracle callback relayed by the gateway.
//
// Gating: the pause switch applies, role and cooldown do not; the Schnorr
// proof carries the authority. Validation order is load-bearing:
// replay beats state mismatch beats proof errors, and steps 1-3 are pure
// reads. Nothing is written until every check has passed.
func (c *CipherBetContract) OnDecryptionResult(
	ctx contractapi.TransactionContextInterface,
	requestID, plaintextHex, proofJSON string,
) (string, error) {

	if err := requireActive(ctx); err != nil {
		return "", err
	}
	requestID = strings.TrimSpace(requestID)

	// 1) Context lookup + replay check
	raw, err := ctx.GetStub().GetState(keyDecryptPrefix + requestID)
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", fmt.Errorf("%w: unknown decryption request %q", ErrInvalidBatchState, requestID)
	}
	var dc DecryptionContext
	if err := json.Unmarshal(raw, &dc); err != nil {
		return "", fmt.Errorf("decryption context %q corrupt: %w", requestID, err)
	}
	if dc.Processed {
		return "", fmt.Errorf("%w: request %q already processed", ErrReplayAttempt, requestID)
	}

	// 2) Recompute the commitment over the batch's current collection records
	bm, err := getBatch(ctx, dc.BatchID)
	if err != nil {
		return "", err
	}
	if bm == nil {
		return "", fmt.Errorf("%w: batch %d", ErrBatchClosedOrMissing, dc.BatchID)
	}
	handles, err := collectScoreHandles(ctx, bm)
	if err != nil {
		return "", err
	}
	if got := commitmentHash(ctx.GetStub().GetChannelID(), bm.ID, handles); got != dc.CommitmentHash {
		return "", fmt.Errorf("%w: commitment diverged for request %q", ErrStateMismatch, requestID)
	}

	// 3) Proof: shape, length, key, signature (all collapse to ErrInvalidProof)
	plaintext, err := decodePlaintext(plaintextHex, dc.HandleCount)
	if err != nil {
		return "", err
	}
	if err := verifyDecryptionProof(ctx, &dc, plaintext, proofJSON); err != nil {
		return "", err
	}

	// 4) Decode one big-endian uint64 per handle, request order
	scores := decodeScores(plaintext)

	// 5) Commit: flip processed, anchor the result, emit completion
	txID := ctx.GetStub().GetTxID()
	when := nowRFC3339(ctx)
	dc.Processed = true
	dc.ProcessedAt = when
	if err := ctx.GetStub().PutState(keyDecryptPrefix+dc.RequestID, mustJSON(&dc)); err != nil {
		return "", err
	}

	anchor := &SettlementAnchor{
		BatchID:        dc.BatchID,
		RequestID:      dc.RequestID,
		Time:           when,
		Scores:         scores,
		CommitmentHash: dc.CommitmentHash,
		ProofDigest:    sha256HexStr(proofJSON),
		Forced:         dc.Forced,
		TxID:           txID,
	}
	if err := ctx.GetStub().PutState(resultKey(dc.BatchID, dc.RequestID), mustJSON(anchor)); err != nil {
		return "", err
	}

	if p, _ := getParams(ctx); p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventDecryptionCompleted, mustJSON(map[string]any{
			"requestID": dc.RequestID, "batchID": dc.BatchID,
			"scores": scores, "time": when,
		}))
	}

	// Small JSON so the gateway can log the commit without a follow-up query
	return fmt.Sprintf(`{"requestID":"%s","batchID":%d,"scores":%s,"status":"settled"}`,
		dc.RequestID, dc.BatchID, string(mustJSON(scores))), nil
}

// ForceResettle re-issues a settlement request for any closed non-empty batch,
// current or not. Owner-only escape hatch for an oracle that never answered a
// prior request; everything downstream of the new context is identical.
func (c *CipherBetContract) ForceResettle(ctx contractapi.TransactionContextInterface, batchID uint64) (string, error) {
	if _, err := requireOwner(ctx); err != nil {
		return "", err
	}

	bm, err := getBatch(ctx, batchID)
	if err != nil {
		return "", err
	}
	if bm == nil {
		return "", fmt.Errorf("%w: batch %d", ErrBatchClosedOrMissing, batchID)
	}
	if bm.IsOpen {
		return "", fmt.Errorf("%w: batch %d is still open", ErrInvalidBatchState, batchID)
	}
	if bm.MatchCount == 0 {
		return "", fmt.Errorf("%w: batch %d has no matches", ErrInvalidBatchState, batchID)
	}
	return c.openDecryptionContext(ctx, bm, true)
}

/* Oracle key management */

// buildOracleKey validates and normalises one key record before storage.
func buildOracleKey(ctx contractapi.TransactionContextInterface, oracleID, pubKeyHex, scheme, status string) (*OracleKey, error) {
	oracleID = strings.TrimSpace(oracleID)
	if oracleID == "" {
		return nil, fmt.Errorf("oracleID empty")
	}
	scheme = strings.TrimSpace(scheme)
	if scheme == "" {
		scheme = proofScheme
	}
	if scheme != proofScheme {
		return nil, fmt.Errorf("unsupported proof scheme %q", scheme)
	}
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != oracleStatusActive && status != oracleStatusRevoked {
		return nil, fmt.Errorf("invalid status %q (want A or X)", status)
	}
	pubKeyHex = strings.ToLower(strings.TrimSpace(pubKeyHex))
	pubBytes, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return nil, fmt.Errorf("pubKeyHex not hex: %w", err)
	}
	if _, err := schnorr.ParsePubKey(pubBytes); err != nil {
		return nil, fmt.Errorf("pubKeyHex not a valid secp256k1 point: %w", err)
	}
	return &OracleKey{
		OracleID:  oracleID,
		PubKeyHex: pubKeyHex,
		Scheme:    scheme,
		Status:    status,
		UpdatedAt: nowRFC3339(ctx),
		TxID:      ctx.GetStub().GetTxID(),
	}, nil
}

func storeOracleKey(ctx contractapi.TransactionContextInterface, rec *OracleKey, source string) error {
	if err := ctx.GetStub().PutState(keyOracleKeyPrefix+rec.OracleID, mustJSON(rec)); err != nil {
		return err
	}
	if p, _ := getParams(ctx); p.EmitEvents {
		_ = ctx.GetStub().SetEvent(eventOracleKeySet, mustJSON(map[string]string{
			"oracleID": rec.OracleID, "status": rec.Status, "source": source, "time": rec.UpdatedAt,
		}))
	}
	return nil
}

// SetOracleKey writes a verification key for one oracle directly.
// Status "A" activates the key, "X" blocks it.
func (c *CipherBetContract) SetOracleKey(ctx contractapi.TransactionContextInterface, oracleID, pubKeyHex, scheme, status string) error {
	if _, err := requireOwner(ctx); err != nil {
		return err
	}
	rec, err := buildOracleKey(ctx, oracleID, pubKeyHex, scheme, status)
	if err != nil {
		return err
	}
	return storeOracleKey(ctx, rec, "direct")
}

// RefreshOracleKeyFromRegistry copies one oracle record from the registry
// chaincode. Deliberately ungated: a refresh can only move the local copy
// toward the registry's view, including propagating an X revocation.
func (c *CipherBetContract) RefreshOracleKeyFromRegistry(ctx contractapi.TransactionContextInterface, oracleID string) error {
	oracleID = strings.TrimSpace(oracleID)
	if oracleID == "" {
		return fmt.Errorf("oracleID empty")
	}
	params, err := getParams(ctx)
	if err != nil {
		return err
	}

	// Cc2cc → oraclereg.GetOracle(oracleID) -> payload bytes are a JSON record
	payload, err := callRegistry(ctx, params.OracleCCName, "GetOracle", oracleID)
	if err != nil {
		return err
	}

	var reg struct {
		OracleID  string `json:"oracle_id"`
		PubKeyHex string `json:"pubkey_hex"`
		Scheme    string `json:"scheme"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(payload, &reg); err != nil {
		return fmt.Errorf("registry record JSON parse: %w", err)
	}
	if reg.OracleID == "" {
		reg.OracleID = oracleID
	}
	rec, err := buildOracleKey(ctx, reg.OracleID, reg.PubKeyHex, reg.Scheme, reg.Status)
	if err != nil {
		return err
	}
	return storeOracleKey(ctx, rec, "registry")
}

// GetOracleKey reads back the locally cached key for one oracle.
func (c *CipherBetContract) GetOracleKey(ctx contractapi.TransactionContextInterface, oracleID string) (*OracleKey, error) {
	rec, err := loadOracleKey(ctx, strings.TrimSpace(oracleID))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("oracle key %q not found", oracleID)
	}
	return rec, nil
}

/* Settlement read surface */

// GetBatchScoreHandles returns the ordered score handle sequence plus the
// commitment hash the oracle must echo. The read hits the collection, so only
// member peers can serve it; everyone else gets the peer's private-data error.
func (c *CipherBetContract) GetBatchScoreHandles(ctx contractapi.TransactionContextInterface, batchID uint64) (*BatchScoreHandles, error) {
	bm, err := getBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if bm == nil {
		return nil, fmt.Errorf("%w: batch %d", ErrBatchClosedOrMissing, batchID)
	}
	handles, err := collectScoreHandles(ctx, bm)
	if err != nil {
		return nil, err
	}
	return &BatchScoreHandles{
		BatchID:        bm.ID,
		Handles:        handles,
		CommitmentHash: commitmentHash(ctx.GetStub().GetChannelID(), bm.ID, handles),
	}, nil
}

// GetDecryptionContext returns one request context by id.
func (c *CipherBetContract) GetDecryptionContext(ctx contractapi.TransactionContextInterface, requestID string) (*DecryptionContext, error) {
	raw, err := ctx.GetStub().GetState(keyDecryptPrefix + strings.TrimSpace(requestID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: unknown decryption request %q", ErrInvalidBatchState, requestID)
	}
	var dc DecryptionContext
	if err := json.Unmarshal(raw, &dc); err != nil {
		return nil, fmt.Errorf("decryption context %q corrupt: %w", requestID, err)
	}
	return &dc, nil
}

// GetBatchResults scans every settlement anchor committed for one batch.
// A batch that was re-requested and honoured twice has two anchors.
func (c *CipherBetContract) GetBatchResults(ctx contractapi.TransactionContextInterface, batchID uint64) ([]*SettlementAnchor, error) {
	prefix := fmt.Sprintf("%s%d::", keyResultPrefix, batchID)
	it, err := ctx.GetStub().GetStateByRange(prefix, prefix+"~")
	if err != nil {
		return nil, err
	}
	defer it.Close()

	out := []*SettlementAnchor{}
	for it.HasNext() {
		kv, err := it.Next()
		if err != nil {
			return nil, err
		}
		var a SettlementAnchor
		if err := json.Unmarshal(kv.Value, &a); err != nil {
			// Corrupt anchor; skip rather than fail the whole scan
			continue
		}
		out = append(out, &a)
	}
	return out, nil
}

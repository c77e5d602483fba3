// Harness_test.go
//
// Purpose: Minimal, deterministic test harness for the CipherBet chaincode.
// Role: Provides an in-memory world-state/private-data "ledger", a mocked Fabric
// ChaincodeStub (via gomock), per-actor creator identities so real cid parsing
// Runs in tests, and a real Schnorr keypair fixture so proof verification
// Exercises the exact production code path. It lets tests drive the contract
// Without real peers, orderers, or crypto material from a network.
// Key deps:
// - Hyperledger Fabric Go SDKs: chaincode-go/shim, contractapi, protos (peer, msp, queryresult)
// - gomock for stub expectations and return paths
// - Google protobuf/timestamppb for controllable TxTimestamp values
// - Decred secp256k1/schnorr + blake256 for oracle proof fixtures
// - Local fakes package: github.com/yourorg/cipherbet_cc/fakes (mock stub interface)
// Notes:
// - This harness makes defensive copies of byte slices to avoid aliasing between
// The test code and the "ledger" maps.
// - Creator, txID and the clock are mutable harness fields so tests can switch
// Actors, mint fresh request ids, and step past cooldown windows.

package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	testing "testing"
	"time"

	msp "github.com/hyperledger/fabric-protos-go-apiv2/msp"
	pb "github.com/hyperledger/fabric-protos-go-apiv2/peer"
	queryresult "github.com/hyperledger/fabric-protos-go-apiv2/ledger/queryresult"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"github.com/golang/mock/gomock"
	"github.com/hyperledger/fabric-chaincode-go/v2/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/v2/shim"
	contractapi "github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	f "github.com/yourorg/cipherbet_cc/fakes"
)

const (
	actorOwner    = "owner"
	actorBookieA  = "bookie-a"
	actorBookieB  = "bookie-b"
	actorStranger = "stranger"

	testPlayer1 = "pl-000001"
	testPlayer2 = "pl-000002"
	testPlayer3 = "pl-000003"
	testPlayer4 = "pl-000004"

	testChannel = "wagerchan-01"
	testOracle  = "oracle-east-1"

	defaultCooldownSecs int64 = 30

	testStartTime int64 = 1764000000
)

/* in-memory WS/PDC harness */

// MemWorld is a tiny in-memory ledger used by the mock stub.
// It tracks world state (ws), private data (pdc), emitted events, and op counts.
type memWorld struct {
	ws     map[string][]byte
	pdc    map[string]map[string][]byte
	events []struct {
		name    string
		payload []byte
	}
	opsCounts struct {
		getState, putState int
		getPDC, putPDC     int
		setEvent           int
	}
}

// NewMemWorld allocates an empty memWorld.
// Params: none.
// Returns: pointer to a zeroed, ready-to-use memWorld.
func newMemWorld() *memWorld {
	return &memWorld{ws: make(map[string][]byte), pdc: make(map[string]map[string][]byte)}
}

// GetState simulates GetState on the in-mem world state.
// Copies the value before returning to avoid aliasing in tests.
// Params: key (string).
// Returns: value ([]byte) or nil, error (always nil here).
func (m *memWorld) getState(key string) ([]byte, error) {
	m.opsCounts.getState++
	if v, ok := m.ws[key]; ok {
		return append([]byte(nil), v...), nil // Copy for safety
	}
	return nil, nil
}

// PutState simulates PutState on the in-mem world state.
// Params: key, value.
// Returns: error (always nil here).
func (m *memWorld) putState(key string, val []byte) error {
	m.opsCounts.putState++
	m.ws[key] = append([]byte(nil), val...) // Copy for safety
	return nil
}

// GetPDC simulates GetPrivateData from a named collection.
// Params: coll, key.
// Returns: value or nil, error (always nil here).
func (m *memWorld) getPDC(coll, key string) ([]byte, error) {
	m.opsCounts.getPDC++
	if c, ok := m.pdc[coll]; ok {
		if v, ok2 := c[key]; ok2 {
			return append([]byte(nil), v...), nil // Copy for safety
		}
	}
	return nil, nil
}

// PutPDC simulates PutPrivateData into a named collection.
// Lazily creates the collection map if needed.
// Params: coll, key, value.
// Returns: error (always nil here).
func (m *memWorld) putPDC(coll, key string, val []byte) error {
	m.opsCounts.putPDC++
	c := m.pdc[coll]
	if c == nil {
		c = make(map[string][]byte)
		m.pdc[coll] = c
	}
	c[key] = append([]byte(nil), val...) // Copy for safety
	return nil
}

// SetEvent records a chaincode event into the in-mem log.
// Params: name, payload.
// Returns: error (always nil here).
func (m *memWorld) setEvent(name string, payload []byte) error {
	m.opsCounts.setEvent++
	m.events = append(m.events, struct {
		name    string
		payload []byte
	}{name: name, payload: append([]byte(nil), payload...)}) // Copy for safety
	return nil
}

// MemKVIter is a simple iterator over a pre-materialized slice of keys/values.
// It implements the subset of shim.StateQueryIteratorInterface used by tests.
type memKVIter struct {
	keys []string
	vals [][]byte
	i    int
}

// HasNext tells whether another KV is available.
// Params: none.
// Returns: bool.
func (it *memKVIter) HasNext() bool { return it.i < len(it.keys) }

// Next returns the current KV and advances the iterator.
// Params: none.
// Returns: *queryresult.KV, error when past the end.
func (it *memKVIter) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, fmt.Errorf("iterator exhausted")
	}
	kv := &queryresult.KV{Key: it.keys[it.i], Value: it.vals[it.i]}
	it.i++
	return kv, nil
}

// Close is a no-op to satisfy the interface.
// Params: none.
// Returns: error (always nil here).
func (it *memKVIter) Close() error { return nil }

// IterWSRange materializes a range scan over world state (ws).
// It honors [start, end) lexicographic bounds and sorts keys for deterministic order.
// Params: start, end.
// Returns: an iterator over the selected KV slice.
func (m *memWorld) iterWSRange(start, end string) *memKVIter {
	if m.ws == nil {
		return &memKVIter{}
	}
	var keys []string
	for k := range m.ws {
		// Range semantics are inclusive of start and exclusive of end, matching Fabric behavior.
		if (start == "" || k >= start) && (end == "" || k < end) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys) // Keep scans stable across runs
	vals := make([][]byte, len(keys))
	for i, k := range keys {
		vals[i] = append([]byte(nil), m.ws[k]...) // Copy for safety
	}
	return &memKVIter{keys: keys, vals: vals}
}

/* tx context w/ real stub (no gomock ctx) */

// SimpleTxCtx adapts a raw shim.ChaincodeStubInterface to a contractapi TransactionContext.
// It keeps the shape tiny because the contract only needs GetStub.
// Params: none (constructed with a stub field).
// Returns: methods to satisfy contractapi.TransactionContextInterface.
type simpleTxCtx struct{ s shim.ChaincodeStubInterface }

// GetStub returns the underlying ChaincodeStubInterface.
func (c *simpleTxCtx) GetStub() shim.ChaincodeStubInterface { return c.s }

// GetClientIdentity is not used by the contract; it returns nil to satisfy the interface.
func (c *simpleTxCtx) GetClientIdentity() cid.ClientIdentity { return nil }

/* test harness (single definition) */

// TestHarness bundles the mock controller, stub, in-mem ledger, and the contract under test.
// Creator, clock and txID are mutable so tests can switch actors, step time past
// cooldown windows, and mint a fresh request id per simulated transaction.
type testHarness struct {
	ctrl    *gomock.Controller
	ctx     contractapi.TransactionContextInterface
	stub    *f.MockChaincodeStubInterface
	mem     *memWorld
	cc      *CipherBetContract
	t       *testing.T
	txID    string
	now     int64
	creator []byte
	actors  map[string][]byte
}

// newHarness builds a mocked Fabric transaction context for unit tests.
// It wires world state and private data collections to in-memory maps and
// points the creator at the "owner" actor.
func newHarness(t *testing.T) *testHarness {
	t.Helper()

	ctrl := gomock.NewController(t)
	stub := f.NewMockChaincodeStubInterface(ctrl)
	txctx := &simpleTxCtx{s: stub}
	mem := newMemWorld()

	h := &testHarness{
		ctrl: ctrl, ctx: txctx, stub: stub, mem: mem,
		cc: new(CipherBetContract), t: t,
		txID: "tx-0001", now: testStartTime,
		actors: make(map[string][]byte),
	}
	h.asActor(actorOwner)

	// Creator bytes follow the active actor; cid parses them for real.
	stub.EXPECT().GetCreator().AnyTimes().DoAndReturn(func() ([]byte, error) { return h.creator, nil })

	// Return the current harness txID; tests may override it per case.
	stub.EXPECT().GetTxID().AnyTimes().DoAndReturn(func() string { return h.txID })

	// Deterministic, advanceable clock for cooldown arithmetic.
	stub.EXPECT().
		GetTxTimestamp().
		AnyTimes().
		DoAndReturn(func() (*timestamppb.Timestamp, error) {
			return &timestamppb.Timestamp{Seconds: h.now}, nil
		})

	// Stable channel ID used by commitment and proof domain separation.
	stub.EXPECT().GetChannelID().AnyTimes().Return(testChannel)

	// Wire world state and PDC to the in-mem maps.
	stub.EXPECT().GetState(gomock.Any()).AnyTimes().DoAndReturn(mem.getState)
	stub.EXPECT().PutState(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(mem.putState)
	stub.EXPECT().GetPrivateData(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(mem.getPDC)
	stub.EXPECT().PutPrivateData(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(mem.putPDC)

	// World-state range queries (used by GetBatchResults over RES:: keys).
	stub.EXPECT().
		GetStateByRange(gomock.Any(), gomock.Any()).
		AnyTimes().
		DoAndReturn(func(start, end string) (shim.StateQueryIteratorInterface, error) {
			return mem.iterWSRange(start, end), nil
		})

	// Capture events into the in-mem log for assertions.
	stub.EXPECT().SetEvent(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(mem.setEvent)

	return h
}

/* cc2cc stubs (pointer return matches the shim) */

// StubPlayerCC mocks playerreg roster checks.
// Entries explicitly set to false are denied; everything else is known.
// Params: roster map[playerID]bool (nil => everyone known).
// Returns: none.
func (h *testHarness) stubPlayerCC(roster map[string]bool) {
	h.stub.EXPECT().
		InvokeChaincode(
			gomock.Eq("playerreg"),
			gomock.AssignableToTypeOf([][]byte{}),
			gomock.Any(),
		).
		AnyTimes().
		DoAndReturn(func(cc string, args [][]byte, ch string) *pb.Response {
			if len(args) == 0 {
				return &pb.Response{Status: int32(shim.ERROR), Message: "missing fcn"}
			}
			fcn := string(args[0])
			switch fcn {
			case "HasPlayer":
				if len(args) < 2 {
					return &pb.Response{Status: int32(shim.ERROR), Message: "bad args for roster check"}
				}
				ok := true
				if roster != nil {
					if v, exists := roster[string(args[1])]; exists {
						ok = v
					}
				}
				if ok {
					return &pb.Response{Status: int32(shim.OK), Payload: []byte("true")}
				}
				return &pb.Response{Status: int32(shim.OK), Payload: []byte("false")}
			default:
				return &pb.Response{Status: 404, Message: "not mocked: " + fcn}
			}
		})
}

// StubOracleRegCC mocks oraclereg.GetOracle for a single registered oracle.
// Params: oracleID, pubKeyHex, status ("A"/"X").
// Returns: none.
func (h *testHarness) stubOracleRegCC(oracleID, pubKeyHex, status string) {
	h.stub.EXPECT().
		InvokeChaincode(
			gomock.Eq("oraclereg"),
			gomock.AssignableToTypeOf([][]byte{}),
			gomock.Any(),
		).
		AnyTimes().
		DoAndReturn(func(cc string, args [][]byte, ch string) *pb.Response {
			if len(args) == 0 {
				return &pb.Response{Status: int32(shim.ERROR), Message: "missing fcn"}
			}
			fcn := string(args[0])
			switch fcn {
			case "GetOracle":
				if len(args) < 2 || string(args[1]) != oracleID {
					return &pb.Response{Status: 404, Message: "oracle not found"}
				}
				b := toJSONBytes(map[string]string{
					"oracle_id":  oracleID,
					"pubkey_hex": pubKeyHex,
					"scheme":     proofScheme,
					"status":     status,
				})
				return &pb.Response{Status: int32(shim.OK), Payload: b}
			default:
				return &pb.Response{Status: 404, Message: "not mocked: " + fcn}
			}
		})
}

/* actor & clock helpers */

// AsActor points GetCreator at the cached identity for name, minting it on first use.
// The same name always maps to the same cert within one harness.
// Params: name.
// Returns: none.
func (h *testHarness) asActor(name string) {
	if _, ok := h.actors[name]; !ok {
		h.actors[name] = devSerializedIdentity("WagerMSP", name)
	}
	h.creator = h.actors[name]
}

// IdOf resolves the contract-visible identity string for a named actor,
// leaving the active actor unchanged.
// Params: name.
// Returns: identity string.
func (h *testHarness) idOf(name string) string {
	h.t.Helper()
	prev := h.creator
	h.asActor(name)
	id, err := h.cc.WhoAmI(h.ctx)
	h.creator = prev
	requireNoErr(h.t, err)
	return id
}

// Advance moves the harness clock forward by sec seconds.
// Params: sec.
// Returns: none.
func (h *testHarness) advance(sec int64) { h.now += sec }

// SetTxID overrides the txID seen by the contract for the next operations.
// Params: id.
// Returns: none.
func (h *testHarness) setTxID(id string) { h.txID = id }

/* contract flow helpers */

// InitAsOwner runs InitLedger as the "owner" actor and leaves it active.
// Params: none.
// Returns: none (fails the test on error).
func (h *testHarness) initAsOwner() {
	h.t.Helper()
	h.asActor(actorOwner)
	requireNoErr(h.t, h.cc.InitLedger(h.ctx))
}

// GrantSubmitter grants the role to a named actor through the contract API.
// Params: name.
// Returns: none.
func (h *testHarness) grantSubmitter(name string) {
	h.t.Helper()
	id := h.idOf(name)
	h.asActor(actorOwner)
	requireNoErr(h.t, h.cc.GrantSubmitter(h.ctx, id))
}

// OpenBatch opens a batch as owner and returns its id.
// Params: none.
// Returns: new batch id.
func (h *testHarness) openBatch() uint64 {
	h.t.Helper()
	h.asActor(actorOwner)
	id, err := h.cc.OpenBatch(h.ctx)
	requireNoErr(h.t, err)
	return id
}

// CloseBatch closes the given batch as owner.
// Params: id.
// Returns: none.
func (h *testHarness) closeBatch(id uint64) {
	h.t.Helper()
	h.asActor(actorOwner)
	requireNoErr(h.t, h.cc.CloseBatch(h.ctx, id))
}

// SubmitMatch files a match as the named submitter, stepping the clock past
// the cooldown window first so back-to-back calls in one test do not trip it.
// Params: name, batchID, p1, p2.
// Returns: assigned match index.
func (h *testHarness) submitMatch(name string, batchID uint64, p1, p2 string) uint64 {
	h.t.Helper()
	h.advance(defaultCooldownSecs + 1)
	h.asActor(name)
	idx, err := h.cc.SubmitMatch(h.ctx, batchID, p1, p2, mkHandle(0xa1), mkHandle(0xa2))
	requireNoErr(h.t, err)
	return idx
}

// SubmitScores settles one match with handles derived from the score seeds,
// so tests can recompute the exact handle sequence later.
// Params: name, batchID, idx, s1, s2 (seed bytes).
// Returns: none.
func (h *testHarness) submitScores(name string, batchID, idx uint64, s1, s2 byte) {
	h.t.Helper()
	h.advance(defaultCooldownSecs + 1)
	h.asActor(name)
	requireNoErr(h.t, h.cc.SubmitEncryptedScores(h.ctx, batchID, idx, mkHandle(s1), mkHandle(s2)))
}

// RequestSettlement opens a decryption request as the named submitter under a
// fresh request (tx) id and returns it.
// Params: name, batchID, reqID.
// Returns: request id as echoed by the contract.
func (h *testHarness) requestSettlement(name string, batchID uint64, reqID string) string {
	h.t.Helper()
	h.advance(defaultCooldownSecs + 1)
	h.asActor(name)
	h.setTxID(reqID)
	got, err := h.cc.RequestBatchSettlement(h.ctx, batchID)
	requireNoErr(h.t, err)
	if got != reqID {
		h.t.Fatalf("request id: got %q want %q", got, reqID)
	}
	return got
}

// SeedScoredBatch drives the full submit flow: open, one match per scores
// entry, score handles from the seeds, close. Returns the batch id.
// Params: submitter, scores (pairs of handle seed bytes).
// Returns: batch id.
func (h *testHarness) seedScoredBatch(submitter string, scores [][2]byte) uint64 {
	h.t.Helper()
	bid := h.openBatch()
	for i, sc := range scores {
		idx := h.submitMatch(submitter, bid, fmt.Sprintf("pl-%06d", 2*i+1), fmt.Sprintf("pl-%06d", 2*i+2))
		h.submitScores(submitter, bid, idx, sc[0], sc[1])
	}
	h.closeBatch(bid)
	return bid
}

/* assertion helpers */

// RequireNoErr fails the test immediately if err != nil, labeling it unexpected.
// Params: t, err.
// Returns: none.
func requireNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// RequireErrContains asserts that err is non-nil and its message contains wantSubstr (case-insensitive).
// Params: t, err, wantSubstr (may be empty to assert only non-nil).
// Returns: none.
func requireErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", wantSubstr)
	}
	if wantSubstr != "" && !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(wantSubstr)) {
		t.Fatalf("error %q does not contain %q", err.Error(), wantSubstr)
	}
}

// RequireErrIs asserts that err matches the sentinel via errors.Is.
// Params: t, err, want.
// Returns: none.
func requireErrIs(t *testing.T, err error, want error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", want)
	}
	if !errors.Is(err, want) {
		t.Fatalf("error %q is not %v", err.Error(), want)
	}
}

// Must2 collapses a (string, error) contract return to just the error.
func must2(_ string, err error) error { return err }

// Must2u collapses a (uint64, error) contract return to just the error.
func must2u(_ uint64, err error) error { return err }

/* event inspection */

// CountEvents counts how many times an event name was emitted so far.
// Params: name.
// Returns: count.
func (h *testHarness) countEvents(name string) int {
	n := 0
	for _, e := range h.mem.events {
		if e.name == name {
			n++
		}
	}
	return n
}

// LastEventPayload returns the payload of the most recent emission of name, or nil.
// Params: name.
// Returns: payload copy or nil.
func (h *testHarness) lastEventPayload(name string) []byte {
	for i := len(h.mem.events) - 1; i >= 0; i-- {
		if h.mem.events[i].name == name {
			return append([]byte(nil), h.mem.events[i].payload...)
		}
	}
	return nil
}

/* PDC inspection */

// ReadScoreRec fetches the stored score record for a match from the in-mem PDC.
// It fails the test if the key is missing or JSON is malformed.
// Params: t, h, batchID, idx.
// Returns: ScoreHandlesPDC value.
func readScoreRec(t *testing.T, h *testHarness, batchID, idx uint64) ScoreHandlesPDC {
	t.Helper()
	cm := h.mem.pdc[scoresPDC]
	if cm == nil {
		t.Fatalf("PDC %s empty (want %s)", scoresPDC, scoreKey(batchID, idx))
	}
	raw, ok := cm[scoreKey(batchID, idx)]
	if !ok {
		t.Fatalf("missing PDC key %s", scoreKey(batchID, idx))
	}
	var sh ScoreHandlesPDC
	if err := json.Unmarshal(raw, &sh); err != nil {
		t.Fatalf("bad PDC json for %s: %v", scoreKey(batchID, idx), err)
	}
	return sh
}

/* handle & plaintext fixtures */

// MkHandle builds a deterministic 64-hex-char handle from a seed byte.
// Params: seed.
// Returns: canonical handle string.
func mkHandle(seed byte) string {
	return strings.Repeat(fmt.Sprintf("%02x", seed), 32)
}

// ExpectedHandles mirrors the handle sequence seedScoredBatch produced.
// Params: scores (seed pairs).
// Returns: handles, two per match in index order.
func expectedHandles(scores [][2]byte) []string {
	out := make([]string, 0, 2*len(scores))
	for _, sc := range scores {
		out = append(out, mkHandle(sc[0]), mkHandle(sc[1]))
	}
	return out
}

// EncodeScores packs plaintext scores as 8 bytes big-endian each, the exact
// oracle plaintext framing the contract decodes.
// Params: scores.
// Returns: raw plaintext bytes.
func encodeScores(scores []uint64) []byte {
	buf := make([]byte, 0, 8*len(scores))
	for _, s := range scores {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], s)
		buf = append(buf, b[:]...)
	}
	return buf
}

/* oracle fixture */

// OracleFixture holds a real Schnorr keypair so callbacks can be signed the
// way a production oracle would sign them.
type oracleFixture struct {
	id   string
	priv *secp256k1.PrivateKey
	pub  string // Compressed pubkey, hex
}

// NewOracleFixture mints a keypair for one oracle id.
// Params: t, id.
// Returns: fixture.
func newOracleFixture(t *testing.T, id string) *oracleFixture {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	requireNoErr(t, err)
	return &oracleFixture{
		id:   id,
		priv: priv,
		pub:  hex.EncodeToString(priv.PubKey().SerializeCompressed()),
	}
}

// Register installs the fixture's key on the contract as the owner, active.
// Params: h.
// Returns: none.
func (o *oracleFixture) register(h *testHarness) {
	h.t.Helper()
	h.asActor(actorOwner)
	requireNoErr(h.t, h.cc.SetOracleKey(h.ctx, o.id, o.pub, proofScheme, "A"))
}

// SignedProof produces the proof envelope JSON for one callback. The digest
// binds channel, request, commitment hash and plaintext, exactly as verified.
// Params: t, channelID, requestID, commitHash, plaintext.
// Returns: proof JSON string.
func (o *oracleFixture) signedProof(t *testing.T, channelID, requestID, commitHash string, plaintext []byte) string {
	t.Helper()
	digest := proofDigest(channelID, requestID, commitHash, plaintext)
	sig, err := schnorr.Sign(o.priv, digest)
	requireNoErr(t, err)
	return string(toJSONBytes(map[string]string{
		"oracleID": o.id,
		"scheme":   proofScheme,
		"sigHex":   hex.EncodeToString(sig.Serialize()),
	}))
}

/* tiny JSON & identity helpers */

// ToJSONBytes marshals any Go value using encoding/json with errors ignored for tests.
// Params: v.
// Returns: JSON bytes (best effort).
func toJSONBytes(v any) []byte { b, _ := json.Marshal(v); return b }

// DevSerializedIdentity generates a minimal SerializedIdentity with a self-signed cert.
// Distinct common names produce distinct contract-visible identity strings.
// Params: ms (MSP ID), cn (certificate common name).
// Returns: raw serialized identity bytes.
func devSerializedIdentity(ms, cn string) []byte {
	key, _ := rsa.GenerateKey(rand.Reader, 1024)
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn, Organization: []string{"wager-dev"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, _ := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	pemCert := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	sid := &msp.SerializedIdentity{Mspid: ms, IdBytes: pemCert}
	b, _ := proto.Marshal(sid)
	return b
}

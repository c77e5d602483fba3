package main

import (
  "encoding/json"
  "errors"
  "fmt"
  "strings"
  "github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
)

const oracleColl = "oracle_pdc"

type OracleRecord struct {
  OracleID  string `json:"oracle_id"`
  PubKeyHex string `json:"pubkey_hex"` // 33-byte compressed secp256k1, hex
  Scheme    string `json:"scheme"`     // e.g. "schnorr-blake256-v1"
  Status    string `json:"status"`     // "A" or "X"
  Operator  string `json:"operator"`
  Endpoint  string `json:"endpoint"`
}

type SmartContract struct{ contractapi.Contract }

func keyOracle(id string) string {
  return "OR::" + id
}

// PutOracleChunk writes an array of OracleRecord into PDC via transient["oracles"] = JSON array
func (s *SmartContract) PutOracleChunk(ctx contractapi.TransactionContextInterface) error {
  tm, err := ctx.GetStub().GetTransient(); if err != nil { return fmt.Errorf("get transient: %w", err) }
  raw, ok := tm["oracles"]; if !ok || len(raw) == 0 { return errors.New("transient[oracles] missing") }
  var recs []OracleRecord
  if err := json.Unmarshal(raw, &recs); err != nil { return fmt.Errorf("decode oracles: %w", err) }
  for _, r := range recs {
    r.OracleID = strings.TrimSpace(r.OracleID)
    if r.OracleID == "" { return errors.New("oracle_id empty") }
    r.PubKeyHex = strings.ToLower(strings.TrimSpace(r.PubKeyHex))
    if r.PubKeyHex == "" { return fmt.Errorf("pubkey_hex empty for %s", r.OracleID) }
    r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
    if r.Status != "A" && r.Status != "X" {
      return fmt.Errorf("invalid status %q for %s", r.Status, r.OracleID)
    }
    if r.Scheme == "" { r.Scheme = "schnorr-blake256-v1" }
    val, err := json.Marshal(r); if err != nil { return fmt.Errorf("marshal: %w", err) }
    if err := ctx.GetStub().PutPrivateData(oracleColl, keyOracle(r.OracleID), val); err != nil {
      return fmt.Errorf("put PDC: %w", err)
    }
  }
  return nil
}

// SetOracleStatus flips one record between "A" and "X" without touching the key material.
func (s *SmartContract) SetOracleStatus(ctx contractapi.TransactionContextInterface, oracleID, status string) error {
  oracleID = strings.TrimSpace(oracleID)
  if oracleID == "" { return errors.New("oracle_id empty") }
  status = strings.ToUpper(strings.TrimSpace(status))
  if status != "A" && status != "X" { return fmt.Errorf("invalid status %q", status) }
  val, err := ctx.GetStub().GetPrivateData(oracleColl, keyOracle(oracleID))
  if err != nil { return err }
  if len(val) == 0 { return fmt.Errorf("oracle not found") }
  var r OracleRecord
  if err := json.Unmarshal(val, &r); err != nil { return fmt.Errorf("decode record: %w", err) }
  r.Status = status
  out, err := json.Marshal(r); if err != nil { return fmt.Errorf("marshal: %w", err) }
  return ctx.GetStub().PutPrivateData(oracleColl, keyOracle(oracleID), out)
}

func (s *SmartContract) HasOracle(ctx contractapi.TransactionContextInterface, oracleID string) (bool, error) {
  h, err := ctx.GetStub().GetPrivateDataHash(oracleColl, keyOracle(strings.TrimSpace(oracleID)))
  if err != nil { return false, err }
  return len(h) > 0, nil
}

func (s *SmartContract) GetOracle(ctx contractapi.TransactionContextInterface, oracleID string) (string, error) {
  val, err := ctx.GetStub().GetPrivateData(oracleColl, keyOracle(strings.TrimSpace(oracleID)))
  if err != nil { return "", err }
  if len(val) == 0 { return "", fmt.Errorf("oracle not found") }
  return string(val), nil
}

func main() {
  cc, err := contractapi.NewChaincode(new(SmartContract)); if err != nil { panic(err) }
  if err := cc.Start(); err != nil { panic(err) }
}

package main

/*
playerreg (bootstrap/minimal)

Exports (for admin/preload & verification only):
  1) UpsertPlayers(playersJSON)
       PUBLIC state:
         PL::<playerID>     → full Player JSON
         PLIDX::<playerID>  → "1"
         PLLIST             → ["pl-000001", ...] (sorted)
     - Idempotent and *prunes* stale entries that are no longer present.

  2) PutPlayerRollChunk(entriesJSON_or_empty)
       • Preferred: pass entries via transient map key "players" (JSON array bytes)
       • Fallback: if transient missing, uses the arg (for quick tests)
       entries := [{"player_id":"...", "status":"active"}, ...]
     - Chunked loads merge into PLLIST instead of replacing it.

  3) GetPlayerList() → JSON list of player IDs
  4) HasPlayer(playerID) → "true"/"false" (via the public index key)
*/

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
)

// -----------------------------------------------------------------------------
// Keys
// -----------------------------------------------------------------------------

func playerKey(playerID string) string    { return "PL::" + playerID }
func playerIdxKey(playerID string) string { return "PLIDX::" + playerID }
func playerListKey() string               { return "PLLIST" }

// -----------------------------------------------------------------------------
// Models
// -----------------------------------------------------------------------------

type Player struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Region      string `json:"region"`
	Status      string `json:"status"` // "active" / "banned"
}

// -----------------------------------------------------------------------------
// Contract
// -----------------------------------------------------------------------------

type Contract struct {
	contractapi.Contract
}

// UpsertPlayers loads/updates the whole roster in one call.
// It is idempotent and also *removes* players that are no longer in the list.
func (c *Contract) UpsertPlayers(ctx contractapi.TransactionContextInterface, playersJSON string) error {
	// Parse payload
	var rows []Player
	if err := json.Unmarshal([]byte(playersJSON), &rows); err != nil {
		return fmt.Errorf("parse players: %w", err)
	}

	// Build new set
	newIDs := make([]string, 0, len(rows))
	newSet := make(map[string]struct{}, len(rows))

	for _, r := range rows {
		r.PlayerID = strings.TrimSpace(r.PlayerID)
		r.DisplayName = strings.TrimSpace(r.DisplayName)
		r.Region = strings.TrimSpace(r.Region)
		r.Status = strings.TrimSpace(r.Status)

		if r.PlayerID == "" {
			return fmt.Errorf("player entry missing player_id")
		}
		if r.Status == "" {
			r.Status = "active"
		}
		newIDs = append(newIDs, r.PlayerID)
		newSet[r.PlayerID] = struct{}{}

		b, _ := json.Marshal(r)
		if err := ctx.GetStub().PutState(playerKey(r.PlayerID), b); err != nil {
			return err
		}
		if err := ctx.GetStub().PutState(playerIdxKey(r.PlayerID), []byte("1")); err != nil {
			return err
		}
	}

	// Prune stale players (present earlier but missing now)
	oldListBytes, err := ctx.GetStub().GetState(playerListKey())
	if err != nil {
		return err
	}
	if len(oldListBytes) > 0 {
		var oldIDs []string
		_ = json.Unmarshal(oldListBytes, &oldIDs)
		for _, old := range oldIDs {
			if _, still := newSet[old]; !still {
				if err := ctx.GetStub().DelState(playerKey(old)); err != nil {
					return err
				}
				if err := ctx.GetStub().DelState(playerIdxKey(old)); err != nil {
					return err
				}
			}
		}
	}

	// Write sorted list (even if empty)
	sort.Strings(newIDs)
	bList, _ := json.Marshal(newIDs)
	return ctx.GetStub().PutState(playerListKey(), bList)
}

// PutPlayerRollChunk stores roster entries in bulk without replacing the list.
// Preferred input is transient map key "players" (raw JSON array).
func (c *Contract) PutPlayerRollChunk(ctx contractapi.TransactionContextInterface, entriesJSON string) error {
	// Try transient first
	if tmap, err := ctx.GetStub().GetTransient(); err == nil {
		if b, ok := tmap["players"]; ok && len(b) > 0 {
			entriesJSON = string(b) // bytes are already the JSON array
		}
	}

	// Parse entries
	var entries []map[string]string
	if err := json.Unmarshal([]byte(entriesJSON), &entries); err != nil {
		return fmt.Errorf("parse players: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	added := make([]string, 0, len(entries))
	for _, e := range entries {
		id := strings.TrimSpace(e["player_id"])
		status := strings.TrimSpace(e["status"])
		if id == "" {
			return fmt.Errorf("player_id missing in an entry")
		}
		if status == "" {
			status = "active"
		}

		p := Player{
			PlayerID:    id,
			DisplayName: strings.TrimSpace(e["display_name"]),
			Region:      strings.TrimSpace(e["region"]),
			Status:      status,
		}
		b, _ := json.Marshal(p)

		if err := ctx.GetStub().PutState(playerKey(id), b); err != nil {
			return err
		}
		if err := ctx.GetStub().PutState(playerIdxKey(id), []byte("1")); err != nil {
			return err
		}
		added = append(added, id)
	}

	return mergePlayerList(ctx, added)
}

// mergePlayerList unions new ids into PLLIST, keeping it sorted.
func mergePlayerList(ctx contractapi.TransactionContextInterface, ids []string) error {
	cur, err := ctx.GetStub().GetState(playerListKey())
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(ids))
	if len(cur) > 0 {
		var old []string
		_ = json.Unmarshal(cur, &old)
		for _, id := range old {
			set[id] = struct{}{}
		}
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	all := make([]string, 0, len(set))
	for id := range set {
		all = append(all, id)
	}
	sort.Strings(all)
	b, _ := json.Marshal(all)
	return ctx.GetStub().PutState(playerListKey(), b)
}

// GetPlayerList returns the sorted player IDs.
func (c *Contract) GetPlayerList(ctx contractapi.TransactionContextInterface) (string, error) {
	b, err := ctx.GetStub().GetState(playerListKey())
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "[]", nil
	}
	return string(b), nil
}

// GetPlayer returns the stored record for one player id.
func (c *Contract) GetPlayer(ctx contractapi.TransactionContextInterface, playerID string) (string, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return "", fmt.Errorf("player_id empty")
	}
	b, err := ctx.GetStub().GetState(playerKey(playerID))
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", fmt.Errorf("player not found")
	}
	return string(b), nil
}

// HasPlayer returns true if the player id is present in the roster index.
func (c *Contract) HasPlayer(ctx contractapi.TransactionContextInterface, playerID string) (bool, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return false, fmt.Errorf("player_id empty")
	}
	b, err := ctx.GetStub().GetState(playerIdxKey(playerID))
	if err != nil {
		return false, err
	}
	return len(b) > 0, nil
}

func main() {
	cc, err := contractapi.NewChaincode(new(Contract))
	if err != nil {
		panic(err)
	}
	if err := cc.Start(); err != nil {
		panic(err)
	}
}

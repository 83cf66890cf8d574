package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int       `json:"version"`
	WorldID string    `json:"world_id"`
	Tick    uint64    `json:"tick"`
	SavedAt time.Time `json:"saved_at"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	// Grid geometry the cell ids were computed against.
	MapSize    float64 `json:"map_size"`
	CellSize   float64 `json:"cell_size"`
	GridOffset float64 `json:"grid_offset,omitempty"`

	Cells    []CellV1    `json:"cells"`
	Factions []FactionV1 `json:"factions"`
	Wars     []WarV1     `json:"wars"`
	Pins     []PinV1     `json:"pins"`
}

type CellV1 struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	Type            string `json:"type"`
	FactionID       string `json:"faction_id,omitempty"`
	ClaimantID      string `json:"claimant_id,omitempty"`
	ClaimStructure  uint64 `json:"claim_structure,omitempty"`
	ArmoryStructure uint64 `json:"armory_structure,omitempty"`
	Level           int    `json:"level,omitempty"`
}

type FactionV1 struct {
	ID         string   `json:"id"`
	OwnerID    string   `json:"owner_id"`
	MemberIDs  []string `json:"member_ids"`
	ManagerIDs []string `json:"manager_ids,omitempty"`
	InviteIDs  []string `json:"invite_ids,omitempty"`

	TaxRate  float64 `json:"tax_rate"`
	TaxChest uint64  `json:"tax_chest,omitempty"`

	NextUpkeepPaymentTime time.Time `json:"next_upkeep_payment_time"`
	IsUpkeepPastDue       bool      `json:"is_upkeep_past_due,omitempty"`

	IsBadlands         bool      `json:"is_badlands,omitempty"`
	BadlandsToggleTime time.Time `json:"badlands_toggle_time"`

	CreationTime time.Time `json:"creation_time"`
}

type WarV1 struct {
	ID          string `json:"id"`
	AttackerID  string `json:"attacker_id"`
	DefenderID  string `json:"defender_id"`
	DeclarerID  string `json:"declarer_id"`
	CassusBelli string `json:"cassus_belli"`

	AdminApproved    bool `json:"admin_approved"`
	DefenderApproved bool `json:"defender_approved"`

	AttackerPeaceOfferTime time.Time `json:"attacker_peace_offer_time"`
	DefenderPeaceOfferTime time.Time `json:"defender_peace_offer_time"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	EndReason string    `json:"end_reason,omitempty"`
}

type PinV1 struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Position  [3]float64 `json:"position"`
	CellID    string     `json:"cell_id"`
	CreatorID string     `json:"creator_id"`
}

// WriteSnapshot writes a zstd stream holding a JSON header line followed by the
// gob-encoded snapshot. The file is replaced atomically.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line duplicates snap.Header; it is there for tools that only
	// want to peek.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// Latest returns the newest "<tick>.snap.zst" file in dir by tick.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	best, bestTick := "", uint64(0)
	for _, e := range entries {
		var tick uint64
		if e.IsDir() {
			continue
		}
		if _, err := fmt.Sscanf(e.Name(), "%d.snap.zst", &tick); err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			best, bestTick = e.Name(), tick
		}
	}
	if best == "" {
		return "", os.ErrNotExist
	}
	return filepath.Join(dir, best), nil
}

// FileName is the conventional snapshot file name for a tick.
func FileName(tick uint64) string {
	return fmt.Sprintf("%d.snap.zst", tick)
}

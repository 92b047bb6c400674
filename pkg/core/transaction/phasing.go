package transaction

import (
	ojson "github.com/nspcc-dev/go-ordered-json"

	"github.com/H01mes/qoober-node-1/pkg/config"
	"github.com/H01mes/qoober-node-1/pkg/io"
)

// VotingModel selects how phasing approval is counted.
type VotingModel byte

// Supported voting models.
const (
	VotingModelAccount VotingModel = iota
	VotingModelBalance
	VotingModelNone
)

func (m VotingModel) valid() bool {
	return m <= VotingModelNone
}

// Phasing marks the transaction as conditionally executed: the fee is
// charged at inclusion but the attachment effects are deferred until the
// poll resolves at the finish height.
type Phasing struct {
	baseAppendix
	finishHeight    int32
	votingModel     VotingModel
	quorum          int64
	minBalance      int64
	whitelist       []uint64
	holdingID       uint64
	minBalanceModel byte
}

// NewPhasing creates a phasing appendage.
func NewPhasing(finishHeight int32, votingModel VotingModel, quorum int64, whitelist []uint64) *Phasing {
	return &Phasing{
		baseAppendix: baseAppendix{version: 1},
		finishHeight: finishHeight,
		votingModel:  votingModel,
		quorum:       quorum,
		whitelist:    whitelist,
	}
}

func parsePhasing(r *io.BinReader, txVersion byte) (*Phasing, error) {
	p := &Phasing{}
	p.version = parseAppendixVersion(r, txVersion)
	p.finishHeight = int32(r.ReadU32LE())
	p.votingModel = VotingModel(r.ReadB())
	p.quorum = int64(r.ReadU64LE())
	p.minBalance = int64(r.ReadU64LE())
	count := int(r.ReadB())
	if count > config.MaxPhasingWhitelistSize {
		return nil, notValidf("phasing whitelist too big: %d", count)
	}
	if count > 0 {
		p.whitelist = make([]uint64, count)
		for i := range p.whitelist {
			p.whitelist[i] = r.ReadU64LE()
		}
	}
	p.holdingID = r.ReadU64LE()
	p.minBalanceModel = r.ReadB()
	if r.Err != nil {
		return nil, notValidf("cannot parse phasing appendix: %v", r.Err)
	}
	return p, nil
}

func parsePhasingJSON(data map[string]any) (*Phasing, error) {
	if !hasKey(data, "version.Phasing") {
		return nil, nil
	}
	p := &Phasing{}
	p.version = jsonByte(data, "version.Phasing")
	p.finishHeight = int32(jsonInt64(data, "phasingFinishHeight"))
	p.votingModel = VotingModel(jsonByte(data, "phasingVotingModel"))
	p.quorum = jsonInt64(data, "phasingQuorum")
	p.minBalance = jsonInt64(data, "phasingMinBalance")
	p.holdingID = jsonUint64String(data, "phasingHolding")
	p.minBalanceModel = jsonByte(data, "phasingMinBalanceModel")
	if list, ok := data["phasingWhitelist"].([]any); ok {
		p.whitelist = make([]uint64, 0, len(list))
		for _, el := range list {
			s, ok := el.(string)
			if !ok {
				return nil, notValidf("invalid phasing whitelist entry")
			}
			id, err := parseUnsignedDecimal(s)
			if err != nil {
				return nil, notValidf("invalid phasing whitelist entry: %v", err)
			}
			p.whitelist = append(p.whitelist, id)
		}
	}
	return p, nil
}

// Name implements the Appendix interface.
func (p *Phasing) Name() string {
	return "Phasing"
}

// FinishHeight is the height the poll resolves at.
func (p *Phasing) FinishHeight() int32 {
	return p.finishHeight
}

// VotingModel returns the approval counting model.
func (p *Phasing) VotingModel() VotingModel {
	return p.votingModel
}

// Quorum returns the approval threshold.
func (p *Phasing) Quorum() int64 {
	return p.quorum
}

// Whitelist returns the accounts allowed to approve.
func (p *Phasing) Whitelist() []uint64 {
	return p.whitelist
}

// Size implements the Appendix interface.
func (p *Phasing) Size(txVersion byte) int {
	return p.sizeWithVersion(txVersion, 4+1+8+8+1+8*len(p.whitelist)+8+1)
}

// FullSize implements the Appendix interface.
func (p *Phasing) FullSize(tx *Transaction) int {
	return p.Size(tx.version)
}

func (p *Phasing) putBytes(w *io.BinWriter, txVersion byte) {
	p.putVersion(w, txVersion)
	w.WriteU32LE(uint32(p.finishHeight))
	w.WriteB(byte(p.votingModel))
	w.WriteU64LE(uint64(p.quorum))
	w.WriteU64LE(uint64(p.minBalance))
	w.WriteB(byte(len(p.whitelist)))
	for _, id := range p.whitelist {
		w.WriteU64LE(id)
	}
	w.WriteU64LE(p.holdingID)
	w.WriteB(p.minBalanceModel)
}

func (p *Phasing) putJSON(_ *Transaction, obj *ojson.OrderedObject) {
	putVersionJSON(p, obj)
	whitelist := make([]any, 0, len(p.whitelist))
	for _, id := range p.whitelist {
		whitelist = append(whitelist, unsignedDecimal(id))
	}
	*obj = append(*obj,
		ojson.Member{Key: "phasingFinishHeight", Value: int64(p.finishHeight)},
		ojson.Member{Key: "phasingVotingModel", Value: int64(p.votingModel)},
		ojson.Member{Key: "phasingQuorum", Value: p.quorum},
		ojson.Member{Key: "phasingMinBalance", Value: p.minBalance},
		ojson.Member{Key: "phasingWhitelist", Value: whitelist},
		ojson.Member{Key: "phasingHolding", Value: unsignedDecimal(p.holdingID)},
		ojson.Member{Key: "phasingMinBalanceModel", Value: int64(p.minBalanceModel)})
}

func (p *Phasing) validate(tx *Transaction) error {
	if !p.votingModel.valid() {
		return notValidf("invalid phasing voting model %d", p.votingModel)
	}
	if len(p.whitelist) > config.MaxPhasingWhitelistSize {
		return notValidf("phasing whitelist too big: %d", len(p.whitelist))
	}
	seen := make(map[uint64]bool, len(p.whitelist))
	for _, id := range p.whitelist {
		if id == 0 {
			return notValidf("invalid account 0 in phasing whitelist")
		}
		if seen[id] {
			return notValidf("duplicate account in phasing whitelist")
		}
		seen[id] = true
	}
	if p.votingModel == VotingModelAccount {
		if p.quorum <= 0 {
			return notValidf("phasing quorum must be positive")
		}
		if len(p.whitelist) > 0 && p.quorum > int64(len(p.whitelist)) {
			return notValidf("phasing quorum %d exceeds whitelist size %d", p.quorum, len(p.whitelist))
		}
	}
	if p.votingModel == VotingModelNone && p.quorum != 0 {
		return notValidf("phasing quorum must be zero for no-voting model")
	}
	if p.minBalance < 0 {
		return notValidf("invalid phasing minimum balance %d", p.minBalance)
	}
	currentHeight := tx.ctx.height()
	if p.finishHeight <= currentHeight {
		return notCurrentlyValidf("phasing finish height %d is not in the future", p.finishHeight)
	}
	if p.finishHeight > currentHeight+config.MaxPhasingDuration {
		return notCurrentlyValidf("phasing finish height %d too far in the future", p.finishHeight)
	}
	return nil
}

func (p *Phasing) apply(tx *Transaction, _, _ Account) {
	if tx.ctx.Polls != nil {
		tx.ctx.Polls.Add(tx, p)
	}
}

func (p *Phasing) isPhasable() bool {
	return false
}

func (p *Phasing) baselineFee(*Transaction) Fee {
	return ConstantFee(config.OneQBR)
}

func (p *Phasing) nextFee(tx *Transaction) Fee {
	return p.baselineFee(tx)
}

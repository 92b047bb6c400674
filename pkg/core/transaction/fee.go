package transaction

// Fee computes the minimum fee contribution of a single appendage.
type Fee interface {
	Fee(tx *Transaction, app Appendix) int64
}

// ConstantFee charges a flat amount regardless of content.
type ConstantFee int64

// Fee implements the Fee interface.
func (f ConstantFee) Fee(*Transaction, Appendix) int64 {
	return int64(f)
}

// SizeBasedFee charges a constant part plus a per-unit part over the full
// size of the appendage, rounding the last unit up.
type SizeBasedFee struct {
	Constant   int64
	FeePerSize int64
	UnitSize   int
}

// Fee implements the Fee interface.
func (f SizeBasedFee) Fee(tx *Transaction, app Appendix) int64 {
	size := app.FullSize(tx) - 1
	if size < 0 {
		return f.Constant
	}
	return f.Constant + int64(size/f.UnitSize+1)*f.FeePerSize
}

package utils

import "gonum.org/v1/gonum/mat"

const badBlockSize = "utils: blocks do not fit the destination matrix"

// BlockDiag assembles square symmetric blocks down the diagonal of a
// new n×n symmetric matrix. Off-diagonal cross blocks are left zero.
// BlockDiag panics if the block sizes do not sum to n.
func BlockDiag(n int, blocks ...mat.Symmetric) *mat.SymDense {
	out := mat.NewSymDense(n, nil)
	offset := 0
	for _, b := range blocks {
		bn := b.SymmetricDim()
		if offset+bn > n {
			panic(badBlockSize)
		}
		for i := 0; i < bn; i++ {
			for j := i; j < bn; j++ {
				out.SetSym(offset+i, offset+j, b.At(i, j))
			}
		}
		offset += bn
	}
	if offset != n {
		panic(badBlockSize)
	}
	return out
}

package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// gemm computes C = alpha*op(A)*op(B) + beta*C on row-major float32 slices.
//
// op(A) is m×k and op(B) is k×n. When transA is set, A is stored k×m;
// when transB is set, B is stored n×k. Leading dimensions are the row
// strides of the stored matrices.
func gemm(transA, transB bool, m, n, k int, alpha float32, a []float32, lda int, b []float32, ldb int, beta float32, c []float32, ldc int) {
	tA, tB := blas.NoTrans, blas.NoTrans
	ga := blas32.General{Rows: m, Cols: k, Stride: lda, Data: a}
	gb := blas32.General{Rows: k, Cols: n, Stride: ldb, Data: b}
	if transA {
		tA = blas.Trans
		ga.Rows, ga.Cols = k, m
	}
	if transB {
		tB = blas.Trans
		gb.Rows, gb.Cols = n, k
	}
	gc := blas32.General{Rows: m, Cols: n, Stride: ldc, Data: c}
	blas32.Gemm(tA, tB, alpha, ga, gb, beta, gc)
}

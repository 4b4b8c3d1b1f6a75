package board

import "gorgonia.org/tensor"

// Tensor converts the position to a one-hot [12][8][8] float32 tensor.
// Each channel represents one piece type and color (see Piece.Channel).
func (p Position) Tensor() *tensor.Dense {
	backing := make([]float32, NumPieces*Size*Size)
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			ch := p[row][col].Channel()
			if ch < 0 {
				continue
			}
			backing[ch*Size*Size+row*Size+col] = 1.0
		}
	}
	return tensor.New(tensor.WithShape(NumPieces, Size, Size), tensor.WithBacking(backing))
}

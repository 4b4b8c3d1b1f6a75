package board

// Rotate180 turns the board around, as seen from the other side. A photo
// taken from Black's side classifies into the rotated position.
func (p Position) Rotate180() Position {
	var out Position
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			out[Size-1-row][Size-1-col] = p[row][col]
		}
	}
	return out
}

// Mirror flips the board left-to-right.
func (p Position) Mirror() Position {
	var out Position
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			out[row][Size-1-col] = p[row][col]
		}
	}
	return out
}


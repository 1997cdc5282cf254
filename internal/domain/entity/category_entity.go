package entity

// Category is lookup data for expenses.
type Category struct {
	ID   int64
	Name string
}

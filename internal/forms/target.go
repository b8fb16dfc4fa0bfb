package forms

// TargetForm creates the local copy of a target.
type TargetForm struct {
	Identifier string  `form:"identifier" json:"identifier" binding:"required,max=100"`
	Name       string  `form:"name" json:"name" binding:"required"`
	RA         float64 `form:"ra" json:"ra" binding:"gte=0,lt=360"`
	Dec        float64 `form:"dec" json:"dec" binding:"gte=-90,lte=90"`
}

// GroupForm creates a data product group.
type GroupForm struct {
	Name string `form:"name" json:"name" binding:"required,max=200"`
}

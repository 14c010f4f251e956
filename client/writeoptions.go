package client

// BulkWriteOptions configures Collection.BulkWrite.
type BulkWriteOptions struct {
	// Ordered controls execution mode. Ordered runs operations in caller
	// order and stops at the first error; unordered groups operations by
	// kind and keeps going past failures. Defaults to ordered.
	Ordered *bool
}

// NewBulkWriteOptions creates options with defaults.
func NewBulkWriteOptions() *BulkWriteOptions {
	return &BulkWriteOptions{}
}

// SetOrdered sets the execution mode.
func (o *BulkWriteOptions) SetOrdered(ordered bool) *BulkWriteOptions {
	o.Ordered = &ordered
	return o
}

// ordered resolves the effective mode, defaulting to true.
func (o *BulkWriteOptions) ordered() bool {
	if o == nil || o.Ordered == nil {
		return true
	}
	return *o.Ordered
}

// InsertManyOptions configures Collection.InsertMany.
type InsertManyOptions struct {
	Ordered *bool
}

// NewInsertManyOptions creates options with defaults.
func NewInsertManyOptions() *InsertManyOptions {
	return &InsertManyOptions{}
}

// SetOrdered sets the execution mode.
func (o *InsertManyOptions) SetOrdered(ordered bool) *InsertManyOptions {
	o.Ordered = &ordered
	return o
}

func (o *InsertManyOptions) ordered() bool {
	if o == nil || o.Ordered == nil {
		return true
	}
	return *o.Ordered
}

// UpdateOptions configures Collection.UpdateOne and Collection.UpdateMany.
type UpdateOptions struct {
	Upsert *bool
}

// NewUpdateOptions creates options with defaults.
func NewUpdateOptions() *UpdateOptions {
	return &UpdateOptions{}
}

// SetUpsert configures insert-on-no-match behavior.
func (o *UpdateOptions) SetUpsert(upsert bool) *UpdateOptions {
	o.Upsert = &upsert
	return o
}

func (o *UpdateOptions) upsert() bool {
	return o != nil && o.Upsert != nil && *o.Upsert
}

// ReplaceOptions configures Collection.ReplaceOne.
type ReplaceOptions struct {
	Upsert *bool
}

// NewReplaceOptions creates options with defaults.
func NewReplaceOptions() *ReplaceOptions {
	return &ReplaceOptions{}
}

// SetUpsert configures insert-on-no-match behavior.
func (o *ReplaceOptions) SetUpsert(upsert bool) *ReplaceOptions {
	o.Upsert = &upsert
	return o
}

func (o *ReplaceOptions) upsert() bool {
	return o != nil && o.Upsert != nil && *o.Upsert
}

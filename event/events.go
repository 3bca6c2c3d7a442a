package event

import (
	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	EventPersistCreateFunc = eventPersistCreate
)

// CreateEvent appends an audit record. It takes the caller's transaction so
// the record commits or rolls back with the change it describes.
func CreateEvent(sourceType string, sourceId types.ID, sourceDesc string, category EventCategory,
	updatedProperties []UpdatedProperty, creatorId string, db *gorm.DB) error {

	record := EventRecord{
		Event: Event{
			SourceType: sourceType,
			SourceId:   sourceId,
			SourceDesc: sourceDesc,

			EventCategory:     category,
			UpdatedProperties: updatedProperties,

			CreatorId: creatorId,
		},
		Timestamp: types.CurrentTimestamp(),
	}
	return EventPersistCreateFunc(&record, db)
}

// QueryEvents lists the audit trail of one record, oldest first.
func QueryEvents(sourceType string, sourceId types.ID, db *gorm.DB) ([]EventRecord, error) {
	records := []EventRecord{}
	q := db.Where(&EventRecord{Event: Event{SourceType: sourceType, SourceId: sourceId}}).
		Order("timestamp ASC")
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func eventPersistCreate(record *EventRecord, db *gorm.DB) error {
	return db.Create(record).Error
}

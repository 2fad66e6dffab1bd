package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// IsDuplicateKey reports a unique index violation, such as a second shelf
// with the same barcode or a second active session for one route.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

func sortBy(direction int, fields []string) bson.D {
	sort := make(bson.D, 0, len(fields))
	for _, f := range fields {
		sort = append(sort, bson.E{Key: f, Value: direction})
	}
	return sort
}

func SortAscending(fields ...string) bson.D {
	return sortBy(1, fields)
}

func SortDescending(fields ...string) bson.D {
	return sortBy(-1, fields)
}

// TimeRange restricts field to [from, to] in filter. Nil bounds are open;
// with both nil the filter is left untouched.
func TimeRange(filter bson.M, field string, from, to *time.Time) {
	bounds := bson.M{}
	if from != nil {
		bounds["$gte"] = *from
	}
	if to != nil {
		bounds["$lte"] = *to
	}
	if len(bounds) > 0 {
		filter[field] = bounds
	}
}

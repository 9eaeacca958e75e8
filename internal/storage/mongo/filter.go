package mongo

import (
	"go.mongodb.org/mongo-driver/bson"

	"safepiggy/internal/query"
)

// filterDoc renders a predicate as a find/$match document. Both date
// bounds share one "date" sub-document.
func filterDoc(p query.Predicate) bson.D {
	doc := bson.D{}
	var dateRange bson.D
	for _, c := range p.Clauses {
		switch c.Kind {
		case query.CategoryIs:
			doc = append(doc, bson.E{Key: "category", Value: c.Value})
		case query.DateFrom:
			dateRange = append(dateRange, bson.E{Key: "$gte", Value: c.Value})
		case query.DateTo:
			dateRange = append(dateRange, bson.E{Key: "$lte", Value: c.Value})
		default:
			// Unknown clause kinds never match, as in the other backends.
			doc = append(doc, bson.E{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}})
		}
	}
	if len(dateRange) > 0 {
		doc = append(doc, bson.E{Key: "date", Value: dateRange})
	}
	return doc
}

func sortDoc(o query.Ordering) bson.D {
	if o.By == query.SortByAmount {
		return bson.D{{Key: "amount", Value: -1}, {Key: "_id", Value: -1}}
	}
	return bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}
}

func sumPipeline(p query.Predicate) bson.A {
	return bson.A{
		bson.D{{Key: "$match", Value: filterDoc(p)}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
}

func breakdownPipeline(p query.Predicate) bson.A {
	return bson.A{
		bson.D{{Key: "$match", Value: filterDoc(p)}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

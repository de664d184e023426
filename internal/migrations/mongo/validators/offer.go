package validators

import "go.mongodb.org/mongo-driver/bson"

var OfferValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"store_id",
			"seller_id",
			"title",
			"category",
			"original_price",
			"discounted_price",
			"quantity",
			"available_quantity",
			"pickup_start",
			"pickup_end",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"store_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"seller_id": bson.M{
				"bsonType": "string",
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 120,
			},

			"category": bson.M{
				"enum": []string{"bakery", "produce", "dairy", "meals", "grocery", "other"},
			},

			"original_price": bson.M{
				"bsonType":         []string{"double", "int", "long"},
				"exclusiveMinimum": true,
				"minimum":          0,
			},

			"discounted_price": bson.M{
				"bsonType":         []string{"double", "int", "long"},
				"exclusiveMinimum": true,
				"minimum":          0,
			},

			"quantity": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  1000,
			},

			"available_quantity": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"pickup_start": bson.M{
				"bsonType": "date",
			},

			"pickup_end": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"enum": []string{"active", "sold_out", "expired"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

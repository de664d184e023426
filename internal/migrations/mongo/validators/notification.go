package validators

import "go.mongodb.org/mongo-driver/bson"

var NotificationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"kind",
			"title",
			"body",
			"read",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id": bson.M{
				"bsonType": "string",
			},

			"kind": bson.M{
				"enum": []string{
					"booking_created",
					"booking_confirmed",
					"booking_cancelled",
					"booking_completed",
					"review_created",
				},
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 120,
			},

			"body": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"data": bson.M{
				"bsonType": "object",
			},

			"read": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

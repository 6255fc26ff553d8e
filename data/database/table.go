package database

import "go.mongodb.org/mongo-driver/mongo"

// Table 持久化模型声明自己的集合/表名
type Table interface {
	GetTableName() string
}

func Collection(db *mongo.Database, t Table) *mongo.Collection {
	return db.Collection(t.GetTableName())
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	aws_pkg "github.com/PraiaOps/PraiAtiva-sub001/pkg/aws"
	dynamopkg "github.com/PraiaOps/PraiAtiva-sub001/pkg/dynamodb"
	"github.com/PraiaOps/PraiAtiva-sub001/services/common/logger"
	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/repository"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	var mongoURI, dbName, paymentsTable, transactionsTable string
	flag.StringVar(&mongoURI, "mongo", os.Getenv("MONGO_URI"), "MongoDB URI")
	flag.StringVar(&dbName, "db", os.Getenv("MONGO_DATABASE"), "MongoDB database name")
	flag.StringVar(&paymentsTable, "payments-table", os.Getenv("PAYMENTS_TABLE"), "DynamoDB payments table")
	flag.StringVar(&transactionsTable, "transactions-table", os.Getenv("TRANSACTIONS_TABLE"), "DynamoDB transactions table")
	flag.Parse()

	if mongoURI == "" || dbName == "" {
		log.Fatal("MONGO_URI and MONGO_DATABASE must be set or provided via flags")
	}
	if paymentsTable == "" {
		paymentsTable = "Payments"
	}
	if transactionsTable == "" {
		transactionsTable = "Transactions"
	}

	zlog, err := logger.New(logger.Options{Env: os.Getenv("ENV")})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	ctx := context.Background()
	// Connect to Mongo
	mclient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		zlog.Fatal("mongo connect", zap.Error(err))
	}
	defer mclient.Disconnect(ctx) //nolint:errcheck
	src := repository.NewMongoAdapter(mclient, mclient.Database(dbName))

	// Connect to AWS / DynamoDB
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		zlog.Fatal("aws config", zap.Error(err))
	}
	dst := repository.NewDynamoAdapter(dynamopkg.NewClientFromConfig(awsCfg), paymentsTable, transactionsTable)

	res, err := migrate(ctx, src, dst, zlog)
	if err != nil {
		zlog.Fatal("migration aborted", zap.Error(err), zap.Int("payments", res.Payments))
	}
	fmt.Printf("Migration complete. payments=%d transactions=%d skipped=%d failed=%d\n",
		res.Payments, res.Transactions, res.Skipped, res.Failed)
}

package models

import (
	"log"

	"github.com/uinakrani/royalsuppliers-sub002/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&LedgerEntry{}, &LedgerEventRecord{},
		&Order{}, &PaymentRecord{},
		&Invoice{}, &InvoicePayment{},
		&InvestmentAccount{}, &InvestmentActivity{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}

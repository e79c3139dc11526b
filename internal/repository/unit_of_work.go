package repository

import (
	"fmt"

	"golang-backtest/pkg/utils"

	"gorm.io/gorm"
)

// UnitOfWork runs a function inside one transaction. The callback receives a
// DBOption binding every repository call made with it to the transaction;
// panic or error rolls back, otherwise the transaction commits.
type UnitOfWork interface {
	Run(fn func(opts ...utils.DBOption) error) error
}

type unitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) Run(fn func(opts ...utils.DBOption) error) (err error) {
	tx := u.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			err = fmt.Errorf("commit failed: %w", commitErr)
		}
	}()

	err = fn(utils.WithTx(tx))
	return err
}

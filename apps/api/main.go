package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up logger
	var logger core.Logger
	if core.Conf.Debug || core.Conf.RollbarToken == "" {
		logger = logsvc.NewConsoleLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(std, err)
	defer db.Close()
	errAndDie(std, database.Migrate(db))
	sdb := sqlx.NewDb(db, core.Conf.Database.Engine)

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(sdb)
	crsRepo := sqlxrepos.NewCourseRepository(sdb)
	asgRepo := sqlxrepos.NewAssignmentRepository(sdb)
	msgRepo := sqlxrepos.NewMessageRepository(sdb)

	usrSvc := user.NewService(usrRepo, mailSvc)
	asgSvc := assignment.NewService(asgRepo, crsRepo, usrRepo)
	crsSvc := course.NewService(crsRepo, usrRepo, asgRepo, logger)
	msgSvc := message.NewService(msgRepo, usrRepo, crsRepo)

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Address:       core.Conf.Server.Address(),
		Logger:        logger,
		UserSvc:       usrSvc,
		CourseSvc:     crsSvc,
		AssignmentSvc: asgSvc,
		MessageSvc:    msgSvc,
	})
	errAndDie(std, app.Start())
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}

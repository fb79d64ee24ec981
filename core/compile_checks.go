package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Operations    = (*Service)(nil)
	_ ConsentAction = RegisterAction{}
	_ ConsentAction = UpdateAction{}
	_ ConsentAction = RawTokenAction{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)

package app

import "time"

var testTime = time.UnixMilli(1700000000000)

// Package bench generates load against one or more request targets through
// a courier client and reports latency percentiles, throughput and error
// rates.
//
// Two modes are supported. ModeRate issues requests at a fixed arrival rate
// bounded by Options.Concurrency. ModeVU runs Options.VUs virtual users,
// each sending a request and then pausing for the think time. Both modes
// ramp up linearly over Options.RampUp.
//
// Thresholds such as "p95<200ms,errors<1%,rps>50" are checked once the run
// ends; Result.Passed reports whether all of them held.
package bench

// Package incident records recovery attempts and derives effectiveness
// statistics from them.
//
// Every call to the recovery engine produces exactly one Incident, including
// attempts where no strategy applied. Incidents are appended to a Ledger in
// completion order and never modified afterwards. MemoryLedger serves tests
// and single-process deployments; RedisLedger keeps the history in a Redis
// list shared by every replica.
//
// RedisPublisher mirrors incidents and monitor status changes onto a Redis
// pub/sub channel for downstream consumers.
package incident

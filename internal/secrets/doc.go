// Package secrets resolves named secrets such as the notification mail
// password.
//
// Stores follow the scheduler's variable conventions: EnvStore reads
// AIRFLOW_VAR_<KEY> environment variables and dotenv files, PostgresStore
// reads the metadata database's variable table. ChainStore consults several
// stores in order.
package secrets

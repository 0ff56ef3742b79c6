package timescaledb

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('dive_snapshots', 'time', if_not_exists => true, migrate_data => true);`

// peak inert loading and ceiling per run and compartment
const createPeakViewSQL = `CREATE OR REPLACE VIEW dive_compartment_peaks AS
SELECT run_id,
       compartment,
       max(pp_n2 + pp_he) AS peak_loading,
       max(ceiling) AS peak_ceiling,
       max(elapsed_time) AS elapsed_time
FROM dive_snapshots
GROUP BY run_id, compartment;`

const selectPeaksSQL = `SELECT compartment, peak_loading, peak_ceiling, elapsed_time
FROM dive_compartment_peaks
WHERE run_id = ?
ORDER BY compartment;`
